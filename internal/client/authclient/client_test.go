package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"blikterminal/internal/shared/models"
)

func TestVerifyBlik_Success(t *testing.T) {
	var got models.VerifyBlikRequest
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify_blik", r.URL.Path)
		key = r.Header.Get(models.IdempotencyHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":"Transaction successful","new_balance":300.0}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	res, err := c.VerifyBlik(context.Background(), "123456", decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	require.Equal(t, "Transaction successful", res.Message)
	require.Equal(t, "300.00", res.NewBalance.StringFixed(2))

	require.Equal(t, "123456", got.BlikCode)
	require.Equal(t, "12.5", got.Amount.String())
	require.NotEmpty(t, key)
}

func TestTransaction_Declines(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   Kind
		msg    string
	}{
		{"by code", 400, `{"message":"BLIK code expired","error_code":"CODE_EXPIRED"}`, CodeExpired, "BLIK code expired"},
		{"by message", 400, `{"message":"Insufficient funds or invalid card"}`, InsufficientFunds, "Insufficient funds or invalid card"},
		{"invalid code", 400, `{"message":"Invalid BLIK code","error_code":"INVALID_CODE"}`, InvalidCode, "Invalid BLIK code"},
		{"internal", 500, `{"message":"Internal server error","error_code":"INTERNAL"}`, InternalError, "Internal server error"},
		{"not json", 502, `bad gateway`, InternalError, "502 Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).ChargeCard(context.Background(), 3, decimal.NewFromInt(1000))
			var oe *OutcomeError
			require.True(t, errors.As(err, &oe), "%v", err)
			require.Equal(t, tc.kind, oe.Kind)
			require.Equal(t, tc.msg, oe.Message)
			require.Equal(t, tc.kind != InternalError, oe.Kind.Declined())
		})
	}
}

func TestTransaction_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := New(srv.URL, 20*time.Millisecond).ChargeCard(context.Background(), 3, decimal.NewFromInt(1))
	var oe *OutcomeError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, NetworkError, oe.Kind)
	require.False(t, oe.Kind.Declined())
}

func TestLoginAndGenerateCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "password2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(models.TokenResponse{AccessToken: "tok"})
	})
	mux.HandleFunc("/generate_blik", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.BlikCodeResponse{BlikCode: "042042", ExpiresAt: 1090, TimeLeft: 90})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ctx := context.Background()

	_, err := c.Login(ctx, "user2", "wrong")
	require.Error(t, err)

	tok, err := c.Login(ctx, "user2", "password2")
	require.NoError(t, err)
	require.Equal(t, "tok", tok)

	code, err := c.GenerateCode(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, "042042", code.BlikCode)
	require.Equal(t, int64(90), code.TimeLeft)
}
