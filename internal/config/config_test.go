package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 10*time.Minute, cfg.GracePeriod)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.NoError(t, cfg.Validate())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("GRACE_PERIOD", "15m")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("APP_ENV", "production")

	cfg := FromEnv()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/x.db", cfg.DSN())
	assert.Equal(t, 15*time.Minute, cfg.GracePeriod)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Production())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GRACE_PERIOD", "ten minutes")
	t.Setenv("REDIS_DB", "two")

	cfg := FromEnv()
	assert.Equal(t, 10*time.Minute, cfg.GracePeriod)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*App){
		"driver":   func(a *App) { a.DBDriver = "mysql" },
		"queue":    func(a *App) { a.QueueBackend = "kafka" },
		"limiter":  func(a *App) { a.RateLimitBackend = "nginx" },
		"timezone": func(a *App) { a.Timezone = "Mars/Olympus" },
		"grace":    func(a *App) { a.GracePeriod = -time.Minute },
		"seconds":  func(a *App) { a.GracePeriod = 90 * time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := FromEnv()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := FromEnv()
	cfg.GracePeriod = 0
	assert.NoError(t, cfg.Validate())
}
