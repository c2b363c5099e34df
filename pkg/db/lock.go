package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate scopes the next query to take a row-level write lock.
// SQLite has no row locks; its single writer already serializes the transaction.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if IsSQLite(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// SetLockTimeout bounds how long the current transaction waits on row locks.
// MySQL has no transaction-scoped form; its wait comes from the DSN.
func SetLockTimeout(tx *gorm.DB, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	switch tx.Dialector.Name() {
	case "postgres":
		return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())).Error
	default:
		return nil
	}
}

func IsSQLite(tx *gorm.DB) bool {
	if tx == nil || tx.Dialector == nil {
		return false
	}
	return tx.Dialector.Name() == "sqlite"
}
