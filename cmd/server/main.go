package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"blikterminal/internal/server/app"
	"blikterminal/internal/server/config"
	"blikterminal/internal/shared/logger"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	application, err := app.New(context.Background(), version, buildDate, cfg, log)
	if err != nil {
		log.Fatal("failed to init server", zap.Error(err))
	}
	if err := application.Run(); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}
