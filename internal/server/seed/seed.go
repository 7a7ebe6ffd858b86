// Package seed fills an empty account store with the demo accounts the
// terminal is tried out against.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"blikterminal/internal/server/models"
	"blikterminal/internal/shared/credential"
)

type Store interface {
	CountAccounts(ctx context.Context) (int64, error)
	CreateAccount(ctx context.Context, a models.Account) error
}

type account struct {
	id       int64
	login    string
	password string
	balance  int64
}

// DemoCardID is the account behind the demo payment card.
const DemoCardID int64 = 636958224221

func demoAccounts() []account {
	accounts := []account{{id: DemoCardID, login: "1", password: "1", balance: 100}}
	for i := int64(2); i <= 10; i++ {
		accounts = append(accounts, account{
			id:       i,
			login:    fmt.Sprintf("user%d", i),
			password: fmt.Sprintf("password%d", i),
			balance:  i * 100,
		})
	}
	return accounts
}

// Run inserts the demo accounts when the store holds none. It reports how
// many accounts it created.
func Run(ctx context.Context, store Store, logger *zap.Logger) (int, error) {
	n, err := store.CountAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	created := 0
	for _, a := range demoAccounts() {
		hash, err := credential.Hash(a.password)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", a.login, err)
		}
		err = store.CreateAccount(ctx, models.Account{
			ID:           a.id,
			Login:        a.login,
			PasswordHash: hash,
			Balance:      decimal.NewFromInt(a.balance),
		})
		if err != nil {
			return created, fmt.Errorf("create account %d: %w", a.id, err)
		}
		created++
	}
	if logger != nil {
		logger.Info("seeded demo accounts", zap.Int("count", created))
	}
	return created, nil
}
