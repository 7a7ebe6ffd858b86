package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":5000", cfg.HTTPAddr)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, 90*time.Second, cfg.CodeTTL)
	require.True(t, cfg.UsesDevSecret())
	require.True(t, cfg.Seed)
	require.Empty(t, cfg.SeedFile)
	require.Equal(t, 24*time.Hour, cfg.ExpiredRetention)

	t.Setenv("BLIK_HTTP_ADDR", ":9999")
	t.Setenv("BLIK_DB_DSN", "file::memory:")
	t.Setenv("BLIK_JWT_SECRET", "secret")
	t.Setenv("BLIK_CODE_TTL", "2m")
	t.Setenv("BLIK_SEED", "false")
	t.Setenv("BLIK_SEED_FILE", "accounts.yaml")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.HTTPAddr)
	require.Equal(t, "file::memory:", cfg.DatabaseDSN)
	require.Equal(t, 2*time.Minute, cfg.CodeTTL)
	require.False(t, cfg.UsesDevSecret())
	require.False(t, cfg.Seed)
	require.Equal(t, "accounts.yaml", cfg.SeedFile)
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("BLIK_CODE_TTL", "0s")
	_, err := Load()
	require.Error(t, err)
}
