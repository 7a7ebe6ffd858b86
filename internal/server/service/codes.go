package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"blikterminal/internal/server/models"
	"blikterminal/internal/server/repository"
)

const (
	CodeLength     = 6
	DefaultCodeTTL = 90 * time.Second

	maxDrawAttempts = 10
)

var codeSpace = big.NewInt(1_000_000)

// IssuedCode is a freshly generated BLIK code and the last second it is valid.
type IssuedCode struct {
	Code      string
	ExpiresAt int64
}

// CodeManager issues and expires BLIK codes. An account holds at most one
// live code; generating again replaces it.
type CodeManager struct {
	repo  Repository
	locks *accountLocks
	ttl   int64
	draw  func() (string, error)
}

func NewCodeManager(repo Repository, locks *accountLocks, ttl time.Duration) *CodeManager {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	if locks == nil {
		locks = newAccountLocks()
	}
	return &CodeManager{repo: repo, locks: locks, ttl: secs, draw: drawCode}
}

// drawCode returns a uniformly random 6-digit string, leading zeros allowed.
func drawCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// TTL returns the validity window in seconds.
func (m *CodeManager) TTL() int64 { return m.ttl }

// GenerateFor issues a new code for accountID valid until now+TTL. A code that
// is live on another account is never handed out twice; it is redrawn.
func (m *CodeManager) GenerateFor(ctx context.Context, accountID int64, now time.Time) (IssuedCode, error) {
	unlock := m.locks.lock(accountID)
	defer unlock()

	expiry := now.Unix() + m.ttl
	for attempt := 0; attempt < maxDrawAttempts; attempt++ {
		code, err := m.draw()
		if err != nil {
			return IssuedCode{}, internal("draw code", err)
		}
		err = m.repo.SetCode(ctx, accountID, code, expiry)
		switch {
		case err == nil:
			return IssuedCode{Code: code, ExpiresAt: expiry}, nil
		case errors.Is(err, repository.ErrCodeTaken):
			continue
		case errors.Is(err, repository.ErrNotFound):
			return IssuedCode{}, ErrAccountNotFound
		default:
			return IssuedCode{}, internal("set code", err)
		}
	}
	return IssuedCode{}, internal("set code", fmt.Errorf("no free code after %d draws", maxDrawAttempts))
}

// Expired reports whether the account's code is past its window at now.
// Equality still authorizes.
func (m *CodeManager) Expired(a models.Account, now int64) bool {
	return !a.HasCode() || now > a.CodeExpiry
}

// TimeLeft returns the whole seconds until expiry, never negative.
func TimeLeft(expiry int64, now time.Time) int64 {
	left := expiry - now.Unix()
	if left < 0 {
		return 0
	}
	return left
}

func validCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
