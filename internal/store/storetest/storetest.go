// Package storetest opens throwaway SQLite databases for package tests.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"emargement/internal/store"
)

// Open returns a bootstrapped in-memory database private to the test.
func Open(t testing.TB) *store.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := store.Open(context.Background(), store.Options{
		Driver:   "sqlite",
		DSN:      dsn,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, db.Bootstrap(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}
