package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"blikterminal/internal/server/config"
	"blikterminal/internal/server/models"
)

// Repository is the account store the services run against.
type Repository interface {
	GetAccount(ctx context.Context, id int64) (models.Account, error)
	GetAccountByLogin(ctx context.Context, login string) (models.Account, error)
	GetAccountByCode(ctx context.Context, code string) (models.Account, error)
	HasExpiredCode(ctx context.Context, code string) (bool, error)
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	SetCode(ctx context.Context, id int64, code string, expiry int64) error
	ExpireCode(ctx context.Context, id int64, now int64) error
	SweepExpired(ctx context.Context, now int64) (int64, error)
}

// Transaction outcomes. Anything the store fails with is reported as
// ErrInternal so callers never see raw storage errors.
var (
	ErrInvalidCode        = errors.New("invalid BLIK code")
	ErrCodeExpired        = errors.New("BLIK code expired")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInternal           = errors.New("internal error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}

type Services struct {
	Auth          *AuthService
	Codes         *CodeManager
	Processor     *TransactionProcessor
	Authorization *AuthorizationService
	// Now is the wall clock handlers pass into time-dependent operations.
	Now func() time.Time
}

func NewServices(repo Repository, cfg config.Config, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := newAccountLocks()
	processor := &TransactionProcessor{repo: repo, locks: locks}
	codes := NewCodeManager(repo, locks, cfg.CodeTTL)
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Services{
		Auth:      NewAuthService(repo, []byte(cfg.JWTSecret), sessionTTL),
		Codes:     codes,
		Processor: processor,
		Authorization: &AuthorizationService{
			repo:      repo,
			codes:     codes,
			processor: processor,
			logger:    logger.Named("authorization"),
		},
		Now: time.Now,
	}
}

// accountLocks hands out one mutex per account id. Entries are dropped once
// nobody holds or waits for them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[int64]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[int64]*accountLock)}
}

func (l *accountLocks) lock(id int64) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &accountLock{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
