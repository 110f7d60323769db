// Package database wires the gorm connection pool and schema migrations.
package database

import (
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mandiflow/core/internal/models"
)

var memDBCounter atomic.Int64

// PoolConfig tunes the underlying sql.DB connection pool. The marketplace
// takes a single DATABASE_URL DSN; only the pool shape is tuned here.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Database wraps the gorm handle along with the dialect it was opened with,
// since tests open sqlite in-memory and production opens postgres.
type Database struct {
	DB      *gorm.DB
	Dialect string
}

// Connect opens a postgres connection against dsn and configures the pool.
func Connect(dsn string, pool PoolConfig, gormLog gormlogger.Interface) (*Database, error) {
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLog,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Database{DB: gormDB, Dialect: "postgres"}, nil
}

// ConnectSQLite opens an in-memory sqlite database for tests. Tests build
// its schema with AutoMigrate (production schemas come from the
// golang-migrate migrations instead), so repository tests exercise real
// unique indexes rather than mocks.
func ConnectSQLite(dsn string, gormLog gormlogger.Interface) (*Database, error) {
	// A bare ":memory:" DSN is isolated per-connection, so a second
	// connection opened from the pool would see an empty database. The
	// shared-cache form keeps every connection pointed at the same
	// in-memory database.
	if dsn == ":memory:" {
		dsn = fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memDBCounter.Add(1))
	}
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	return &Database{DB: gormDB, Dialect: "sqlite"}, nil
}

// AutoMigrate creates/updates tables for every domain model. Schema
// versioning for production deploys runs separately through the
// golang-migrate migrations in internal/database/migrations; AutoMigrate
// here exists for local development and test bootstrapping.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(
		&models.Retailer{},
		&models.Vendor{},
		&models.Product{},
		&models.ProductAlias{},
		&models.VendorProduct{},
		&models.VendorPriceHistory{},
		&models.PriceAlert{},
		&models.Order{},
		&models.LineItem{},
		&models.OrderStatusLogEntry{},
		&models.CreditLedgerEntry{},
		&models.WebhookEvent{},
		&models.WorkflowState{},
		&models.VendorAssignmentRetry{},
		&models.OrderRecoveryState{},
		&models.IdempotencyKey{},
		&models.ParseSession{},
		&models.RejectedOrder{},
		&models.VendorDecisionLog{},
		&models.AuditLogEntry{},
		&models.UploadedOrderImage{},
	)
}

// HealthCheck pings the underlying connection.
func (d *Database) HealthCheck() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Stats reports the connection pool counters of the underlying sql.DB.
func (d *Database) Stats() (map[string]interface{}, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, err
	}
	s := sqlDB.Stats()
	return map[string]interface{}{
		"max_open_connections": s.MaxOpenConnections,
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"wait_count":           s.WaitCount,
		"wait_duration":        s.WaitDuration.String(),
	}, nil
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
