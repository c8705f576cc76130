// Command playground runs a demo API and exercises the relay client
// pipeline and reactive controllers against it.
//
// Settings come from RELAY_PLAYGROUND_* environment variables, see
// internal/playground/config.go.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/relay/internal/playground"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().
		Timestamp().
		Logger()

	cfg, err := playground.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logger = logger.Level(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := playground.NewApp(cfg, logger).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("playground failed")
		stop()
		os.Exit(1)
	}
}
