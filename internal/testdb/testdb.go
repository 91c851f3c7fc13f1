// Package testdb opens throwaway SQLite databases for package tests.
package testdb

import (
	"path/filepath"
	"testing"

	"workday/config"
	"workday/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New creates a migrated on-disk SQLite database in t.TempDir. A single
// connection is used so concurrent callers serialize at the pool.
func New(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, filepath.Join(t.TempDir(), "workday.db"), 1)
}

// NewConcurrent is New in WAL mode with conns connections, so concurrent
// writers really contend on the database lock.
func NewConcurrent(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "workday.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return open(t, dsn, conns)
}

func open(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()

	db, err := database.NewDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxIdleConns: conns,
		MaxOpenConns: conns,
	})
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, database.AutoMigrate(db), "failed to migrate test database")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
