package models

import "encoding/json"

// Error codes carried next to the human readable message of failed
// transaction responses.
const (
	CodeInvalidCode       = "INVALID_CODE"
	CodeExpired           = "CODE_EXPIRED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInternal          = "INTERNAL"
)

// IdempotencyHeader carries the per-transaction key sent by the terminal.
const IdempotencyHeader = "Idempotency-Key"

type VerifyBlikRequest struct {
	BlikCode string      `json:"blik_code"`
	Amount   json.Number `json:"amount"`
}

type CheckBalanceRequest struct {
	CardID int64       `json:"card_id"`
	Amount json.Number `json:"amount"`
}

// TransactionResponse is returned by /verify_blik and /check_balance.
// NewBalance is only set on success; ErrorCode only on failure.
type TransactionResponse struct {
	Message    string      `json:"message"`
	NewBalance json.Number `json:"new_balance,omitempty"`
	ErrorCode  string      `json:"error_code,omitempty"`
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

type BlikCodeResponse struct {
	BlikCode  string `json:"blik_code"`
	ExpiresAt int64  `json:"expires_at"`
	TimeLeft  int64  `json:"time_left"`
}

type AccountResponse struct {
	ID      int64       `json:"id"`
	Login   string      `json:"login"`
	Balance json.Number `json:"balance"`
}
