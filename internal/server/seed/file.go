package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"blikterminal/internal/server/models"
	"blikterminal/internal/shared/credential"
)

// FileAccount is one entry of a seed file. Passwords arrive already hashed,
// either as argon2id PHC strings or as bcrypt hashes.
type FileAccount struct {
	ID           int64  `mapstructure:"id"`
	Login        string `mapstructure:"login"`
	PasswordHash string `mapstructure:"password_hash"`
	Balance      string `mapstructure:"balance"`
}

var ErrEmptySeedFile = errors.New("seed file lists no accounts")

// LoadFile reads the accounts list from a YAML, JSON or TOML file.
func LoadFile(path string) ([]models.Account, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var entries []FileAccount
	if err := v.UnmarshalKey("accounts", &entries); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptySeedFile
	}

	accounts := make([]models.Account, 0, len(entries))
	for i, e := range entries {
		if e.ID <= 0 || e.Login == "" {
			return nil, fmt.Errorf("seed entry %d: id and login are required", i)
		}
		if !credential.Supported(e.PasswordHash) {
			return nil, fmt.Errorf("seed entry %d (%s): %w", i, e.Login, credential.ErrUnknownScheme)
		}
		balance, err := decimal.NewFromString(e.Balance)
		if err != nil || balance.IsNegative() {
			return nil, fmt.Errorf("seed entry %d (%s): bad balance %q", i, e.Login, e.Balance)
		}
		accounts = append(accounts, models.Account{
			ID:           e.ID,
			Login:        e.Login,
			PasswordHash: e.PasswordHash,
			Balance:      balance,
		})
	}
	return accounts, nil
}

// RunFile inserts the accounts listed in the seed file when the store holds
// none. It reports how many accounts it created.
func RunFile(ctx context.Context, store Store, path string, logger *zap.Logger) (int, error) {
	n, err := store.CountAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	accounts, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, a := range accounts {
		if err := store.CreateAccount(ctx, a); err != nil {
			return created, fmt.Errorf("create account %d: %w", a.ID, err)
		}
		created++
	}
	if logger != nil {
		logger.Info("seeded accounts from file", zap.String("path", path), zap.Int("count", created))
	}
	return created, nil
}
