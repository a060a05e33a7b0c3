package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg := Load()
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, "5 0 1 1 *", cfg.CarryForwardSchedule)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Environment:        "development",
		StorageDriver:      DriverMemory,
		JWTSecret:          "secret",
		JWTTTL:             time.Hour,
		LockTimeout:        time.Second,
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 10,
		NotifyQueueSize:    8,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"postgres without url": func(c *Config) { c.StorageDriver = DriverPostgres },
		"unknown driver":       func(c *Config) { c.StorageDriver = "mongo" },
		"missing secret":       func(c *Config) { c.JWTSecret = "" },
		"memory in production": func(c *Config) { c.Environment = "production"; c.JWTSecret = "0123456789abcdef0123456789abcdef" },
		"short production key": func(c *Config) { c.Environment = "production"; c.StorageDriver = DriverSQLite; c.SQLitePath = "x.db" },
		"zero lock timeout":    func(c *Config) { c.LockTimeout = 0 },
		"tiny body limit":      func(c *Config) { c.MaxBodyBytes = 10 },
		"email without host":   func(c *Config) { c.EmailEnabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
