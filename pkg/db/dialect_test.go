package db

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSNCarriesLockWaitPerConnection(t *testing.T) {
	dsn := MySQLDSN(Config{
		Host:        "db",
		Port:        "3306",
		Name:        "tillpoint",
		User:        "pos",
		Password:    "secret",
		LockTimeout: 2500 * time.Millisecond,
	})

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "tillpoint", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, "3", parsed.Params["innodb_lock_wait_timeout"])
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
}

func TestMySQLDSNOmitsLockWaitWhenUnset(t *testing.T) {
	parsed, err := mysql.ParseDSN(MySQLDSN(Config{Host: "db", Port: "3306", Name: "tillpoint"}))
	require.NoError(t, err)
	_, ok := parsed.Params["innodb_lock_wait_timeout"]
	assert.False(t, ok)
}

func TestLockWaitSecondsFloorsAtOne(t *testing.T) {
	assert.Equal(t, int64(1), lockWaitSeconds(100*time.Millisecond))
	assert.Equal(t, int64(1), lockWaitSeconds(time.Second))
	assert.Equal(t, int64(5), lockWaitSeconds(4200*time.Millisecond))
}
