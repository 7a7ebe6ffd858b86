// Package authclient talks to the authorization server on behalf of the
// terminal and the code command.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"blikterminal/internal/shared/models"
)

const DefaultTimeout = 10 * time.Second

// Kind classifies a failed transaction.
type Kind int

const (
	InvalidCode Kind = iota + 1
	CodeExpired
	InsufficientFunds
	InvalidInput
	InternalError
	NetworkError
)

func (k Kind) String() string {
	switch k {
	case InvalidCode:
		return "invalid-code"
	case CodeExpired:
		return "code-expired"
	case InsufficientFunds:
		return "insufficient-funds"
	case InvalidInput:
		return "invalid-input"
	case InternalError:
		return "internal-error"
	case NetworkError:
		return "network-error"
	}
	return "unknown"
}

// Declined reports whether the server answered and refused the payment.
func (k Kind) Declined() bool {
	return k >= InvalidCode && k <= InvalidInput
}

// OutcomeError is returned for every transaction that did not go through.
// Message is the server's text when there is one.
type OutcomeError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *OutcomeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OutcomeError) Unwrap() error { return e.Err }

// Result is an authorized debit.
type Result struct {
	Message    string
	NewBalance decimal.Decimal
}

type Client struct {
	Base string
	HTTP *http.Client

	newKey func() string
}

func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Base:   strings.TrimRight(base, "/"),
		HTTP:   &http.Client{Timeout: timeout},
		newKey: uuid.NewString,
	}
}

var kindByCode = map[string]Kind{
	models.CodeInvalidCode:       InvalidCode,
	models.CodeExpired:           CodeExpired,
	models.CodeInsufficientFunds: InsufficientFunds,
	models.CodeInvalidInput:      InvalidInput,
	models.CodeInternal:          InternalError,
}

// servers that only send a message are classified by its text
var kindByMessage = map[string]Kind{
	"Invalid BLIK code":                  InvalidCode,
	"BLIK code expired":                  CodeExpired,
	"Insufficient funds":                 InsufficientFunds,
	"Insufficient funds or invalid card": InsufficientFunds,
	"Invalid input":                      InvalidInput,
}

func (c *Client) VerifyBlik(ctx context.Context, code string, amount decimal.Decimal) (Result, error) {
	return c.transaction(ctx, "/verify_blik", models.VerifyBlikRequest{
		BlikCode: code,
		Amount:   json.Number(amount.String()),
	})
}

func (c *Client) ChargeCard(ctx context.Context, cardID int64, amount decimal.Decimal) (Result, error) {
	return c.transaction(ctx, "/check_balance", models.CheckBalanceRequest{
		CardID: cardID,
		Amount: json.Number(amount.String()),
	})
}

func (c *Client) post(ctx context.Context, path string, body any, header http.Header) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return c.HTTP.Do(req)
}

func (c *Client) transaction(ctx context.Context, path string, body any) (Result, error) {
	header := http.Header{}
	if c.newKey != nil {
		header.Set(models.IdempotencyHeader, c.newKey())
	}
	resp, err := c.post(ctx, path, body, header)
	if err != nil {
		return Result{}, &OutcomeError{Kind: NetworkError, Message: "Network error", Err: err}
	}
	defer resp.Body.Close()

	var tx models.TransactionResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&tx)

	if resp.StatusCode == http.StatusOK {
		if decodeErr != nil {
			return Result{}, &OutcomeError{Kind: InternalError, Message: "bad response", Err: decodeErr}
		}
		balance, err := decimal.NewFromString(string(tx.NewBalance))
		if err != nil {
			return Result{}, &OutcomeError{Kind: InternalError, Message: "bad balance", Err: err}
		}
		return Result{Message: tx.Message, NewBalance: balance}, nil
	}
	if resp.StatusCode >= 500 || decodeErr != nil {
		msg := tx.Message
		if msg == "" {
			msg = resp.Status
		}
		return Result{}, &OutcomeError{Kind: InternalError, Message: msg, Err: decodeErr}
	}
	kind, ok := kindByCode[tx.ErrorCode]
	if !ok {
		if kind, ok = kindByMessage[tx.Message]; !ok {
			kind = InvalidInput
		}
	}
	return Result{}, &OutcomeError{Kind: kind, Message: tx.Message}
}

// Login returns a session token for the account.
func (c *Client) Login(ctx context.Context, login, password string) (string, error) {
	resp, err := c.post(ctx, "/login", models.LoginRequest{Login: login, Password: password}, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: %s", resp.Status)
	}
	var tok models.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("login failed: empty token")
	}
	return tok.AccessToken, nil
}

// GenerateCode issues a fresh BLIK code for the logged-in account.
func (c *Client) GenerateCode(ctx context.Context, token string) (models.BlikCodeResponse, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	resp, err := c.post(ctx, "/generate_blik", struct{}{}, header)
	if err != nil {
		return models.BlikCodeResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.BlikCodeResponse{}, fmt.Errorf("generate code: %s", resp.Status)
	}
	var out models.BlikCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.BlikCodeResponse{}, err
	}
	return out, nil
}
