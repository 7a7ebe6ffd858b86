package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"blikterminal/internal/server/config"
	"blikterminal/internal/server/httpapi"
	"blikterminal/internal/server/repository/sqlstore"
	"blikterminal/internal/server/seed"
	"blikterminal/internal/server/service"
)

type App struct {
	version   string
	buildDate string
	cfg       config.Config
	logger    *zap.Logger
	server    *http.Server
	store     *sqlstore.Store
	redis     *redis.Client
}

func New(ctx context.Context, version, buildDate string, cfg config.Config, logger *zap.Logger) (*App, error) {
	if cfg.UsesDevSecret() {
		logger.Warn("using the built-in development JWT secret; set BLIK_JWT_SECRET")
	}
	store, err := sqlstore.New(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	switch {
	case cfg.SeedFile != "":
		_, err = seed.RunFile(ctx, store, cfg.SeedFile, logger.Named("seed"))
	case cfg.Seed:
		_, err = seed.Run(ctx, store, logger.Named("seed"))
	}
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{version: version, buildDate: buildDate, cfg: cfg, logger: logger, store: store}
	var cache httpapi.IdempotencyCache
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			_ = a.redis.Close()
			_ = store.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		cache = a.redis
	}

	services := service.NewServices(store, cfg, logger)
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(services, logger.Named("http"), cfg.MaxRequestBytes, cache),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// sweep runs housekeeping in the background so the store does not hold
// stale codes between transactions.
func (a *App) sweep(ctx context.Context) {
	if a.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.housekeep(ctx, now)
		}
	}
}

// housekeep expires elapsed codes and forgets expired-code markers older
// than the retention window.
func (a *App) housekeep(ctx context.Context, now time.Time) {
	n, err := a.store.SweepExpired(ctx, now.Unix())
	if err != nil {
		a.logger.Warn("sweep expired codes", zap.Error(err))
	} else if n > 0 {
		a.logger.Debug("swept expired codes", zap.Int64("count", n))
	}

	if a.cfg.ExpiredRetention <= 0 {
		return
	}
	n, err = a.store.ForgetExpired(ctx, now.Add(-a.cfg.ExpiredRetention).Unix())
	if err != nil {
		a.logger.Warn("forget expired codes", zap.Error(err))
	} else if n > 0 {
		a.logger.Debug("forgot expired codes", zap.Int64("count", n))
	}
}

func (a *App) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.store.Close()
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.close()

	go a.sweep(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.logger.Info("blik server started",
		zap.String("version", a.version),
		zap.String("build_date", a.buildDate),
		zap.String("addr", a.server.Addr),
		zap.String("db_driver", a.cfg.DBDriver),
		zap.Bool("idempotency", a.redis != nil),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}
