package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"blikterminal/internal/server/config"
	"blikterminal/internal/server/models"
	"blikterminal/internal/server/repository/sqlstore"
	"blikterminal/internal/server/service"
	"blikterminal/internal/shared/credential"
	wire "blikterminal/internal/shared/models"
)

type testServer struct {
	handler http.Handler
	store   *sqlstore.Store
	now     time.Time
}

func newTestServer(t *testing.T, name string, cache IdempotencyCache) *testServer {
	t.Helper()
	store, err := sqlstore.New(sqlstore.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hash, err := credential.Hash("password2")
	require.NoError(t, err)
	for _, a := range []models.Account{
		{ID: 2, Login: "user2", PasswordHash: hash, Balance: decimal.RequireFromString("200")},
		{ID: 3, Login: "user3", PasswordHash: "x", Balance: decimal.RequireFromString("300")},
		{ID: 5, Login: "user5", PasswordHash: "x", Balance: decimal.RequireFromString("500")},
	} {
		require.NoError(t, store.CreateAccount(context.Background(), a))
	}

	ts := &testServer{store: store, now: time.Unix(1000, 0)}
	svcs := service.NewServices(store, config.Config{JWTSecret: "test", CodeTTL: 90 * time.Second}, nil)
	svcs.Now = func() time.Time { return ts.now }
	ts.handler = NewRouter(svcs, nil, 1<<16, cache)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/login", wire.LoginRequest{Login: "user2", Password: "password2"}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tok wire.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.AccessToken)

	var found bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			found = true
			require.Equal(t, tok.AccessToken, c.Value)
		}
	}
	require.True(t, found, "session cookie not set")
	return tok.AccessToken
}

func decodeTx(t *testing.T, rr *httptest.ResponseRecorder) wire.TransactionResponse {
	t.Helper()
	var resp wire.TransactionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "http_health", nil)
	rr := ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestLoginGenerateAccountLogout(t *testing.T) {
	ts := newTestServer(t, "http_session", nil)
	token := ts.login(t)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	rr := ts.do(t, http.MethodPost, "/generate_blik", nil, bearer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var code wire.BlikCodeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &code))
	require.Len(t, code.BlikCode, 6)
	require.Equal(t, int64(1090), code.ExpiresAt)
	require.Equal(t, int64(90), code.TimeLeft)

	rr = ts.do(t, http.MethodGet, "/account", nil, bearer)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"id":2,"login":"user2","balance":200}`, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/logout", nil, bearer)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodGet, "/account", nil, bearer)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSessionCookie(t *testing.T) {
	ts := newTestServer(t, "http_cookie", nil)
	token := ts.login(t)

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLoginRejects(t *testing.T) {
	ts := newTestServer(t, "http_login_rejects", nil)

	rr := ts.do(t, http.MethodPost, "/login", wire.LoginRequest{Login: "user2", Password: "nope"}, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(t, http.MethodPost, "/login", "{", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/generate_blik", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestVerifyBlik(t *testing.T) {
	ts := newTestServer(t, "http_verify", nil)
	token := ts.login(t)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	rr := ts.do(t, http.MethodPost, "/generate_blik", nil, bearer)
	require.Equal(t, http.StatusOK, rr.Code)
	var code wire.BlikCodeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &code))

	ts.now = time.Unix(1050, 0)
	rr = ts.do(t, http.MethodPost, "/verify_blik", `{"blik_code":"`+code.BlikCode+`","amount":300}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeTx(t, rr)
	require.Equal(t, "Insufficient funds", resp.Message)
	require.Equal(t, wire.CodeInsufficientFunds, resp.ErrorCode)

	rr = ts.do(t, http.MethodPost, "/verify_blik", `{"blik_code":"`+code.BlikCode+`","amount":12.5}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"message":"Transaction successful","new_balance":187.5}`, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/verify_blik", `{"blik_code":"`+code.BlikCode+`","amount":1}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp = decodeTx(t, rr)
	require.Equal(t, "Invalid BLIK code", resp.Message)
	require.Equal(t, wire.CodeInvalidCode, resp.ErrorCode)
}

func TestVerifyBlik_Expired(t *testing.T) {
	ts := newTestServer(t, "http_verify_expired", nil)
	bearer := map[string]string{"Authorization": "Bearer " + ts.login(t)}

	rr := ts.do(t, http.MethodPost, "/generate_blik", nil, bearer)
	var code wire.BlikCodeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &code))

	ts.now = time.Unix(code.ExpiresAt+1, 0)
	for i := 0; i < 2; i++ {
		rr = ts.do(t, http.MethodPost, "/verify_blik", `{"blik_code":"`+code.BlikCode+`","amount":1}`, nil)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeTx(t, rr)
		require.Equal(t, "BLIK code expired", resp.Message)
		require.Equal(t, wire.CodeExpired, resp.ErrorCode)
	}
}

func TestVerifyBlik_InvalidInput(t *testing.T) {
	ts := newTestServer(t, "http_verify_input", nil)
	for _, body := range []string{
		`{`,
		`{"blik_code":"123456"}`,
		`{"amount":5}`,
		`{"blik_code":"123456","amount":-1}`,
		`{"blik_code":"12345x","amount":1}`,
	} {
		rr := ts.do(t, http.MethodPost, "/verify_blik", body, nil)
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
		resp := decodeTx(t, rr)
		require.Equal(t, "Invalid input", resp.Message, body)
		require.Equal(t, wire.CodeInvalidInput, resp.ErrorCode, body)
	}
}

func TestCheckBalance(t *testing.T) {
	ts := newTestServer(t, "http_check_balance", nil)

	rr := ts.do(t, http.MethodPost, "/check_balance", `{"card_id":3,"amount":1000}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Insufficient funds or invalid card", decodeTx(t, rr).Message)

	rr = ts.do(t, http.MethodPost, "/check_balance", `{"card_id":99,"amount":1}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Insufficient funds or invalid card", decodeTx(t, rr).Message)

	rr = ts.do(t, http.MethodPost, "/check_balance", `{"card_id":3,"amount":0}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Invalid input", decodeTx(t, rr).Message)

	rr = ts.do(t, http.MethodPost, "/check_balance", `{"card_id":3,"amount":100}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"message":"Transaction successful","new_balance":200}`, rr.Body.String())

	acc, err := ts.store.GetAccount(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "200", acc.Balance.String())
}

func TestRequestBodyLimit(t *testing.T) {
	ts := newTestServer(t, "http_body_limit", nil)
	big := `{"card_id":3,"amount":1,"pad":"` + string(bytes.Repeat([]byte("x"), 1<<17)) + `"}`
	rr := ts.do(t, http.MethodPost, "/check_balance", big, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Invalid input", decodeTx(t, rr).Message)
}
