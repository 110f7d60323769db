package parser

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/models"
)

// CatalogProvider loads the product catalog used for matching. It's an
// interface so tests can substitute an in-memory fixture instead of a
// database round trip per parse.
type CatalogProvider interface {
	Load() ([]CatalogEntry, error)
}

// GormCatalogProvider loads the full product+alias catalog from the
// database. Catalogs are small enough (thousands, not millions, of SKUs
// for a regional wholesale network) to load wholesale per parse; a
// future iteration could cache this the way internal/cache projects
// vendor capacity.
type GormCatalogProvider struct {
	db *gorm.DB
}

func NewGormCatalogProvider(db *gorm.DB) *GormCatalogProvider {
	return &GormCatalogProvider{db: db}
}

func (p *GormCatalogProvider) Load() ([]CatalogEntry, error) {
	var products []models.Product
	if err := p.db.Preload("Aliases").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load product catalog: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(products))
	for _, p := range products {
		aliases := make([]string, 0, len(p.Aliases))
		for _, a := range p.Aliases {
			aliases = append(aliases, Normalize(a.Alias))
		}
		entries = append(entries, CatalogEntry{
			ProductID:      p.ProductID,
			SKU:            p.SKU,
			Name:           p.Name,
			NormalizedName: Normalize(p.Name),
			Aliases:        aliases,
		})
	}
	return entries, nil
}
