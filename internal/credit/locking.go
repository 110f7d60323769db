package credit

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockingClauses returns the FOR UPDATE row lock used by the atomic
// writer's pessimistic retailer-row read. SQLite has no
// row-level locks (the whole database is the lock), so the clause is
// omitted there.
func lockingClauses(db *gorm.DB) []clause.Expression {
	if db.Dialector.Name() == "sqlite" {
		return nil
	}
	return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
}
