package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrTransient marks a failure the caller may retry from scratch.
var ErrTransient = errors.New("transient_conflict")

// TxRunner runs one unit of work per transaction with a bounded lock wait.
type TxRunner struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewTxRunner(db *gorm.DB, cfg Config) *TxRunner {
	return &TxRunner{db: db, lockTimeout: cfg.LockTimeout}
}

// Run commits when fn returns nil and rolls everything back otherwise.
// Lock timeouts and serialization failures come back wrapped in ErrTransient.
func (r *TxRunner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := SetLockTimeout(tx, r.lockTimeout); err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil && IsRetryable(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// DB exposes the handle for reads outside a transaction.
func (r *TxRunner) DB() *gorm.DB {
	return r.db
}
