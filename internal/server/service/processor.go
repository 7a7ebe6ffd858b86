package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"blikterminal/internal/server/repository"
)

// TransactionProcessor applies balance debits. The balance check and the
// write happen under the account's lock, so no other debit on the same
// account can interleave.
type TransactionProcessor struct {
	repo  Repository
	locks *accountLocks
}

func (p *TransactionProcessor) Debit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	unlock := p.locks.lock(accountID)
	defer unlock()
	return p.debitLocked(ctx, accountID, amount)
}

// WithAccountLock runs fn while holding accountID's lock. fn must use the
// package-internal locked variants, not Debit.
func (p *TransactionProcessor) WithAccountLock(accountID int64, fn func() error) error {
	unlock := p.locks.lock(accountID)
	defer unlock()
	return fn()
}

func (p *TransactionProcessor) debitLocked(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, ErrInvalidInput
	}
	acc, err := p.repo.GetAccount(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return decimal.Decimal{}, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Decimal{}, internal("load account", err)
	}
	if acc.Balance.LessThan(amount) {
		return decimal.Decimal{}, ErrInsufficientFunds
	}
	balance := acc.Balance.Sub(amount)
	if err := p.repo.UpdateBalance(ctx, accountID, balance); err != nil {
		return decimal.Decimal{}, internal("update balance", err)
	}
	return balance, nil
}
