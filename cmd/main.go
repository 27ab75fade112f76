package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "autoplaylist",
		Usage:    "Group a Spotify library into playlists by genre, artist and language",
		Version:  "0.1.0",
		Flags:    rootFlags(),
		Before:   runner.before,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
