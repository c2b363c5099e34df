package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if hasPGCode(err, "23505") || hasMySQLNumber(err, 1062) {
		return true
	}

	// SQLite (error code 2067)
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsLockTimeoutErr reports whether the database gave up waiting for a row lock.
func IsLockTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if hasPGCode(err, "55P03") || hasMySQLNumber(err, 1205) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// IsSerializationErr covers serialization failures and detected deadlocks.
func IsSerializationErr(err error) bool {
	if err == nil {
		return false
	}
	return hasPGCode(err, "40001") || hasPGCode(err, "40P01") || hasMySQLNumber(err, 1213)
}

// IsRetryable reports whether the whole operation may be retried from scratch.
func IsRetryable(err error) bool {
	return IsLockTimeoutErr(err) || IsSerializationErr(err)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func hasMySQLNumber(err error, number uint16) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == number
	}
	return false
}
