package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"blikterminal/internal/server/repository"
)

// Outcome is the result of an authorized debit.
type Outcome struct {
	AccountID  int64
	NewBalance decimal.Decimal
}

// AuthorizationService authorizes terminal payments, either with a BLIK
// code or with a card id. Each request walks Received -> Validated ->
// Debited -> Responded or stops at Validated with a failure.
type AuthorizationService struct {
	repo      Repository
	codes     *CodeManager
	processor *TransactionProcessor
	logger    *zap.Logger
}

// sweep expires codes whose window has elapsed so validity is judged
// against a clean view.
func (s *AuthorizationService) sweep(ctx context.Context, now int64) error {
	n, err := s.repo.SweepExpired(ctx, now)
	if err != nil {
		return internal("sweep", err)
	}
	if n > 0 {
		s.logger.Debug("swept expired codes", zap.Int64("count", n))
	}
	return nil
}

// VerifyBlik debits amount from the account holding code. A successfully
// used code is consumed. Expired codes are cleared and keep answering
// ErrCodeExpired until the same digits are drawn again or the marker is
// forgotten by the store's housekeeping.
func (s *AuthorizationService) VerifyBlik(ctx context.Context, code string, amount decimal.Decimal, now time.Time) (Outcome, error) {
	ts := now.Unix()
	log := s.logger.With(zap.String("method", "blik"), zap.String("amount", amount.String()))
	log.Debug("received")

	if err := s.sweep(ctx, ts); err != nil {
		return Outcome{}, err
	}
	if !validCode(code) || !amount.IsPositive() {
		return Outcome{}, ErrInvalidInput
	}

	acc, err := s.repo.GetAccountByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		expired, err := s.repo.HasExpiredCode(ctx, code)
		if err != nil {
			return Outcome{}, internal("expired code lookup", err)
		}
		if expired {
			return Outcome{}, ErrCodeExpired
		}
		return Outcome{}, ErrInvalidCode
	}
	if err != nil {
		return Outcome{}, internal("code lookup", err)
	}

	var out Outcome
	err = s.processor.WithAccountLock(acc.ID, func() error {
		cur, err := s.repo.GetAccount(ctx, acc.ID)
		if err != nil {
			return internal("load account", err)
		}
		// consumed, replaced or swept since the lookup
		if cur.ActiveCode != code {
			if cur.ExpiredCode == code {
				return ErrCodeExpired
			}
			return ErrInvalidCode
		}
		if s.codes.Expired(cur, ts) {
			if err := s.repo.ExpireCode(ctx, cur.ID, ts); err != nil {
				return internal("expire code", err)
			}
			return ErrCodeExpired
		}
		log.Debug("validated", zap.Int64("account", cur.ID))

		balance, err := s.processor.debitLocked(ctx, cur.ID, amount)
		if err != nil {
			return err
		}
		log.Debug("debited", zap.Int64("account", cur.ID))
		if err := s.repo.SetCode(ctx, cur.ID, "", 0); err != nil {
			// the debit stands; the code will still run out on its own
			log.Error("consume code", zap.Int64("account", cur.ID), zap.Error(err))
		}
		out = Outcome{AccountID: cur.ID, NewBalance: balance}
		return nil
	})
	if err != nil {
		log.Info("declined", zap.Error(err))
		return Outcome{}, err
	}
	log.Info("authorized", zap.Int64("account", out.AccountID))
	return out, nil
}

// ChargeCard debits amount from the account whose id is cardID. Codes are
// not involved.
func (s *AuthorizationService) ChargeCard(ctx context.Context, cardID int64, amount decimal.Decimal, now time.Time) (Outcome, error) {
	log := s.logger.With(zap.String("method", "card"), zap.Int64("card", cardID), zap.String("amount", amount.String()))
	log.Debug("received")

	if err := s.sweep(ctx, now.Unix()); err != nil {
		return Outcome{}, err
	}
	if cardID <= 0 || !amount.IsPositive() {
		return Outcome{}, ErrInvalidInput
	}
	balance, err := s.processor.Debit(ctx, cardID, amount)
	if err != nil {
		log.Info("declined", zap.Error(err))
		return Outcome{}, err
	}
	log.Info("authorized")
	return Outcome{AccountID: cardID, NewBalance: balance}, nil
}
