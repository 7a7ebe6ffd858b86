package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"blikterminal/internal/server/config"
	"blikterminal/internal/server/models"
	"blikterminal/internal/server/repository/sqlstore"
)

func newTestServices(t *testing.T, name string) (*Services, *sqlstore.Store) {
	t.Helper()
	store, err := sqlstore.New(sqlstore.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svcs := NewServices(store, config.Config{JWTSecret: "test", CodeTTL: 90 * time.Second}, nil)
	return svcs, store
}

func addAccount(t *testing.T, store *sqlstore.Store, id int64, login, passwordHash, balance string) {
	t.Helper()
	require.NoError(t, store.CreateAccount(context.Background(), models.Account{
		ID:           id,
		Login:        login,
		PasswordHash: passwordHash,
		Balance:      decimal.RequireFromString(balance),
	}))
}

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
