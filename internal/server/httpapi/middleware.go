package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const (
	accountIDContextKey contextKey = "accountID"
	tokenContextKey     contextKey = "token"
)

const sessionCookie = "session"

// sessionToken takes the token from the session cookie, falling back to a
// bearer Authorization header.
func sessionToken(req *http.Request) string {
	if c, err := req.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	authz := req.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}

func (r *Router) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token := sessionToken(req)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
			return
		}
		accountID, err := r.services.Auth.Authenticate(req.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session"})
			return
		}
		ctx := context.WithValue(req.Context(), accountIDContextKey, accountID)
		ctx = context.WithValue(ctx, tokenContextKey, token)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func getAccountID(ctx context.Context) int64 {
	if v, ok := ctx.Value(accountIDContextKey).(int64); ok {
		return v
	}
	return 0
}

func getToken(ctx context.Context) string {
	if v, ok := ctx.Value(tokenContextKey).(string); ok {
		return v
	}
	return ""
}

func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req)
		r.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(req.Context())),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
