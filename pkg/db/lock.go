package db

import "gorm.io/gorm"

// LockClause returns the row lock suffix for the connected dialect.
// SQLite serializes writers on its own and rejects FOR UPDATE.
func LockClause(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return ""
	}
	switch db.Dialector.Name() {
	case "sqlite", "sqlite3":
		return ""
	default:
		return " FOR UPDATE"
	}
}

// SkipLockedClause returns the claim lock suffix used by batch sweeps.
func SkipLockedClause(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return ""
	}
	switch db.Dialector.Name() {
	case "sqlite", "sqlite3":
		return ""
	default:
		return " FOR UPDATE SKIP LOCKED"
	}
}
