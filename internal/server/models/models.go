package models

import "github.com/shopspring/decimal"

// Account is a balance-holding record. The account id doubles as the card id.
//
// ActiveCode is non-empty iff CodeExpiry > 0. ExpiredCode remembers the
// last code cleared because its window elapsed.
type Account struct {
	ID           int64
	Login        string
	PasswordHash string
	Balance      decimal.Decimal
	ActiveCode   string
	CodeExpiry   int64
	ExpiredCode  string
}

// HasCode reports whether the account currently holds a code.
func (a Account) HasCode() bool {
	return a.ActiveCode != "" && a.CodeExpiry > 0
}
