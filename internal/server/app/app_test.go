package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blikterminal/internal/server/config"
)

func testConfig(name string) config.Config {
	return config.Config{
		HTTPAddr:         "127.0.0.1:0",
		DBDriver:         "sqlite",
		DatabaseDSN:      "file:" + name + "?mode=memory&cache=shared",
		JWTSecret:        "test",
		CodeTTL:          90 * time.Second,
		SweepInterval:    10 * time.Millisecond,
		ExpiredRetention: time.Hour,
		MaxRequestBytes:  1 << 16,
		Seed:             true,
	}
}

func TestNewSeedsAndServes(t *testing.T) {
	a, err := New(context.Background(), "test", "today", testConfig("app_new"), zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	n, err := a.store.CountAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(10), n)

	rr := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestSweepClearsElapsedCodes(t *testing.T) {
	a, err := New(context.Background(), "test", "today", testConfig("app_sweep"), zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.store.SetCode(ctx, 2, "424242", 1))

	done := make(chan struct{})
	go func() {
		a.sweep(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		acc, err := a.store.GetAccount(ctx, 2)
		return err == nil && !acc.HasCode() && acc.ExpiredCode == "424242"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestHousekeepForgetsOldMarkers(t *testing.T) {
	a, err := New(context.Background(), "test", "today", testConfig("app_housekeep"), zap.NewNop())
	require.NoError(t, err)
	defer a.close()
	ctx := context.Background()

	require.NoError(t, a.store.SetCode(ctx, 3, "313131", 1000))
	a.housekeep(ctx, time.Unix(1001, 0))
	expired, err := a.store.HasExpiredCode(ctx, "313131")
	require.NoError(t, err)
	require.True(t, expired)

	// still inside the retention window
	a.housekeep(ctx, time.Unix(1001, 0).Add(time.Hour))
	expired, err = a.store.HasExpiredCode(ctx, "313131")
	require.NoError(t, err)
	require.True(t, expired)

	a.housekeep(ctx, time.Unix(1002, 0).Add(time.Hour))
	expired, err = a.store.HasExpiredCode(ctx, "313131")
	require.NoError(t, err)
	require.False(t, expired)
}

func TestNewSeedsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`accounts:
  - id: 77
    login: carol
    password_hash: "$2a$04$abcdefghijklmnopqrstuuCk9p1MKgsdzhC5eIZ8b8G7kpk7KXKqq"
    balance: "12"
`), 0o600))
	cfg := testConfig("app_seed_file")
	cfg.SeedFile = path
	a, err := New(context.Background(), "test", "today", cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	n, err := a.store.CountAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig("app_redis")
	cfg.RedisAddr = "127.0.0.1:1"
	_, err := New(context.Background(), "test", "today", cfg, zap.NewNop())
	require.Error(t, err)
}
