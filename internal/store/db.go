package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"emargement/internal/model"
)

// DB holds the process-wide SQL pool and the gorm handle built on top of it.
type DB struct {
	SQL  *sql.DB
	Gorm *gorm.DB
}

// Options selects the backend. Driver is "postgres" (default) or "sqlite".
type Options struct {
	Driver        string
	DSN           string
	SlowThreshold time.Duration
	LogLevel      logger.LogLevel
}

// Open connects, pings and returns the handles. Postgres goes through the
// pgx stdlib driver so pool settings live on one *sql.DB.
func Open(ctx context.Context, opts Options) (*DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(opts),
	}

	var (
		gdb *gorm.DB
		err error
	)
	switch opts.Driver {
	case "sqlite":
		gdb, err = gorm.Open(sqlite.Open(sqliteDSN(opts.DSN)), gcfg)
		if err == nil {
			// one writer at a time; every query inside a transaction uses the tx handle
			if sqlDB, derr := gdb.DB(); derr == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	case "", "postgres":
		var sqlDB *sql.DB
		sqlDB, err = sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
		gdb, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gcfg)
	default:
		return nil, fmt.Errorf("unknown db driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &DB{SQL: sqlDB, Gorm: gdb}, fmt.Errorf("ping db: %w", err)
	}
	return &DB{SQL: sqlDB, Gorm: gdb}, nil
}

// Bootstrap creates missing tables and columns.
func (d *DB) Bootstrap(ctx context.Context) error {
	return d.Gorm.WithContext(ctx).AutoMigrate(model.All()...)
}

// Healthy pings the pool.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.SQL == nil {
		return false
	}
	return d.SQL.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}

// sqliteDSN creates the parent directory of a file path and turns on
// foreign keys unless the caller passed its own parameters.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	return dsn + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
}

func newLogger(opts Options) logger.Interface {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return logger.New(log.New(os.Stdout, "[db] ", log.LstdFlags), logger.Config{
		SlowThreshold:             slow,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
