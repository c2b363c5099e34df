package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/tillpoint/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: products.sku")))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"pg lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"pg serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, true},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"unique", &pgconn.PgError{Code: "23505"}, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestTxRunnerWrapsRetryableErrors(t *testing.T) {
	conn := dbtest.Open(t)
	runner := NewTxRunner(conn, Config{LockTimeout: time.Second})

	err := runner.Run(context.Background(), func(tx *gorm.DB) error {
		return &pgconn.PgError{Code: "55P03"}
	})
	assert.ErrorIs(t, err, ErrTransient)

	plain := errors.New("boom")
	err = runner.Run(context.Background(), func(tx *gorm.DB) error { return plain })
	assert.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, ErrTransient)
}
