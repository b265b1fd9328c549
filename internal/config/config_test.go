package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 60*time.Second, cfg.Cache.RefreshInterval)
	assert.Equal(t, 50, cfg.Views.PageSize)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Gamma.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.Ingest.Interval)
	assert.Equal(t, ":9091", cfg.Ingest.MetricsAddr)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Security.CORSAllowedOrigins)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PD_ENV", "prod")
	t.Setenv("PD_DB_DRIVER", " SQLite ")
	t.Setenv("PD_DB_DSN", "file:test.db")
	t.Setenv("PD_PAGE_SIZE", "25")
	t.Setenv("PD_CACHE_TTL", "5s")
	t.Setenv("PD_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, 25, cfg.Views.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"PD_DB_DRIVER": "mysql"}},
		{name: "zero page size", env: map[string]string{"PD_PAGE_SIZE": "0"}},
		{name: "negative refresh", env: map[string]string{"PD_REFRESH_INTERVAL": "-1s"}},
		{name: "zero gamma rps", env: map[string]string{"PD_GAMMA_RPS": "0"}},
		{name: "zero ingest pages", env: map[string]string{"PD_INGEST_MAX_PAGES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}
