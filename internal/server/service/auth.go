package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blikterminal/internal/server/models"
	"blikterminal/internal/server/repository"
	"blikterminal/internal/shared/credential"
)

// AuthService checks account credentials and keeps the login sessions.
// Sessions live in memory only and are lost on restart; the client holds
// them as signed tokens.
type AuthService struct {
	repo      Repository
	jwtSecret []byte
	ttl       time.Duration

	mu       sync.Mutex
	sessions map[string]session
}

type session struct {
	accountID int64
	expiresAt time.Time
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewAuthService(repo Repository, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{repo: repo, jwtSecret: secret, ttl: ttl, sessions: make(map[string]session)}
}

func (a *AuthService) Login(ctx context.Context, login, password string) (string, error) {
	if login == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	acc, err := a.repo.GetAccountByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", internal("load account", err)
	}
	ok, err := credential.Verify(acc.PasswordHash, password)
	if err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	sid := uuid.NewString()
	claims := sessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(acc.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return "", internal("sign token", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id, s := range a.sessions {
		if now.After(s.expiresAt) {
			delete(a.sessions, id)
		}
	}
	a.sessions[sid] = session{accountID: acc.ID, expiresAt: now.Add(a.ttl)}
	return token, nil
}

func (a *AuthService) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Authenticate resolves a session token to its account id. Tokens of
// logged-out sessions are rejected even while their signature is valid.
func (a *AuthService) Authenticate(_ context.Context, token string) (int64, error) {
	claims, err := a.parse(token)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	s, ok := a.sessions[claims.SessionID]
	a.mu.Unlock()
	if !ok || time.Now().After(s.expiresAt) {
		return 0, ErrUnauthorized
	}
	if claims.Subject != strconv.FormatInt(s.accountID, 10) {
		return 0, ErrUnauthorized
	}
	return s.accountID, nil
}

func (a *AuthService) Logout(_ context.Context, token string) error {
	claims, err := a.parse(token)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[claims.SessionID]; !ok {
		return ErrUnauthorized
	}
	delete(a.sessions, claims.SessionID)
	return nil
}

// Account returns the logged-in account.
func (a *AuthService) Account(ctx context.Context, id int64) (models.Account, error) {
	acc, err := a.repo.GetAccount(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, internal("load account", err)
	}
	return acc, nil
}
