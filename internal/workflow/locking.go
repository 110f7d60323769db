package workflow

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockingClauses returns the FOR UPDATE row lock used when claiming
// pending webhooks/recoveries so two worker instances never double-pick.
// SQLite has no row-level locks, so the clause is omitted there.
func lockingClauses(db *gorm.DB) []clause.Expression {
	if db.Dialector.Name() == "sqlite" {
		return nil
	}
	return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
}
