package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"blikterminal/internal/shared/models"
)

const (
	idempotencyTTL  = 24 * time.Hour
	idempotencyLock = 10 * time.Second

	responseKeyPrefix = "blik:idempotency:"
	lockKeyPrefix     = "blik:lock:"
)

// IdempotencyCache is the subset of *redis.Client the idempotency middleware
// needs.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key and
// answers 409 while the first request with that key is still running. Only
// 2xx responses are stored, so a declined transaction can be retried.
func Idempotency(cache IdempotencyCache, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := req.Header.Get(models.IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, req)
				return
			}
			ctx := req.Context()
			responseKey := responseKeyPrefix + req.URL.Path + ":" + key
			lockKey := lockKeyPrefix + req.URL.Path + ":" + key

			replayed, err := replay(ctx, w, cache, responseKey, logger)
			if err != nil {
				logger.Error("idempotency lookup", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, models.TransactionResponse{Message: msgInternal, ErrorCode: models.CodeInternal})
				return
			}
			if replayed {
				return
			}

			acquired, err := cache.SetNX(ctx, lockKey, "processing", idempotencyLock).Result()
			if err != nil {
				logger.Error("idempotency lock", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, models.TransactionResponse{Message: msgInternal, ErrorCode: models.CodeInternal})
				return
			}
			if !acquired {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "request with this idempotency key is in progress"})
				return
			}
			defer func() {
				if err := cache.Del(context.Background(), lockKey).Err(); err != nil {
					logger.Warn("release idempotency lock", zap.Error(err))
				}
			}()

			// the first holder may have stored its response and released the
			// lock between our lookup and SetNX
			replayed, err = replay(ctx, w, cache, responseKey, logger)
			if err != nil {
				logger.Error("idempotency lookup", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, models.TransactionResponse{Message: msgInternal, ErrorCode: models.CodeInternal})
				return
			}
			if replayed {
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, req)
			if rec.status < 200 || rec.status >= 300 {
				return
			}
			stored, err := json.Marshal(cachedResponse{Status: rec.status, Body: bytes.TrimSpace(rec.body.Bytes())})
			if err != nil {
				return
			}
			if err := cache.Set(context.Background(), responseKey, stored, idempotencyTTL).Err(); err != nil {
				logger.Warn("store idempotent response", zap.Error(err))
			}
		})
	}
}

// replay writes the stored response for responseKey, if there is a readable
// one, and reports whether it did.
func replay(ctx context.Context, w http.ResponseWriter, cache IdempotencyCache, responseKey string, logger *zap.Logger) (bool, error) {
	raw, err := cache.Get(ctx, responseKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		logger.Warn("unreadable cached response", zap.String("key", responseKey))
		return false, nil
	}
	logger.Debug("replay", zap.String("key", responseKey))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotency-Hit", "true")
	w.WriteHeader(cached.Status)
	_, _ = w.Write(cached.Body)
	return true, nil
}
