// Command tenantauth serves the multi-tenant identity API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig()
	if err != nil {
		l := newLogger("", "info")
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.AppEnv, cfg.LogLevel)

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init app")
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		app.Close()
		os.Exit(1)
	}
}
