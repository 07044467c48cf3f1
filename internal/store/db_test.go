package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"emargement/internal/model"
)

func TestSQLiteDSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "app.db")
	assert.Equal(t, path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", sqliteDSN(path))
	assert.DirExists(t, filepath.Join(dir, "nested"))

	custom := "file:x?mode=memory"
	assert.Equal(t, custom, sqliteDSN(custom))
}

func TestOpenBootstrapsSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Options{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "app.db"), LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Bootstrap(ctx))
	assert.True(t, db.Healthy(ctx))
	for _, m := range model.All() {
		assert.True(t, db.Gorm.Migrator().HasTable(m))
	}
	assert.True(t, db.Gorm.Migrator().HasColumn(&model.SignInRecord{}, "heure_arriveer"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql"})
	assert.Error(t, err)
}

func TestNilHandles(t *testing.T) {
	var db *DB
	assert.False(t, db.Healthy(context.Background()))
	assert.NoError(t, db.Close())

	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}

func TestRedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = r.Close() })
	assert.True(t, r.Healthy(context.Background()))
}
