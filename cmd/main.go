// Package main is the entry point for the resilience layer service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/guttosm/resilience-layer/config"
	"github.com/guttosm/resilience-layer/internal/app"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.InitializeApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	application.Start(ctx)

	server := app.NewServer(application.Engine, cfg.Server.Port, cfg.Server.ShutdownTimeout)
	if err := server.Run(ctx, application.Shutdown); err != nil {
		log.Error().Err(err).Msg("Server error")
		stop()
		os.Exit(1)
	}
}
