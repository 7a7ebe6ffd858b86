package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"blikterminal/internal/server/service"
)

type Router struct {
	services        *service.Services
	logger          *zap.Logger
	maxRequestBytes int64
}

// NewRouter wires the account and terminal endpoints. cache may be nil, in
// which case Idempotency-Key headers are ignored.
func NewRouter(services *service.Services, logger *zap.Logger, maxRequestBytes int64, cache IdempotencyCache) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{services: services, logger: logger, maxRequestBytes: maxRequestBytes}
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(r.requestLogger)
	mux.Use(middleware.Recoverer)

	mux.Get("/health", r.handleHealth)
	mux.Post("/login", r.handleLogin)

	mux.Group(func(pr chi.Router) {
		pr.Use(r.sessionMiddleware)
		pr.Post("/logout", r.handleLogout)
		pr.Post("/generate_blik", r.handleGenerateBlik)
		pr.Get("/account", r.handleAccount)
	})

	mux.Group(func(tr chi.Router) {
		if cache != nil {
			tr.Use(Idempotency(cache, logger.Named("idempotency")))
		}
		tr.Post("/verify_blik", r.handleVerifyBlik)
		tr.Post("/check_balance", r.handleCheckBalance)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (r *Router) decode(w http.ResponseWriter, req *http.Request, v any) error {
	if r.maxRequestBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxRequestBytes)
	}
	return json.NewDecoder(req.Body).Decode(v)
}
