package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"scorekit/internal/config"
	"scorekit/internal/container"
	"scorekit/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:           "scorekit",
		Short:         "Train models, reconcile scoring frames and score them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newTrainCmd(),
		newAdaptCmd(),
		newScoreCmd(),
		newModelsCmd(),
		newServeCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[%s] %v\n", errors.GetCode(err), err)
		stop()
		os.Exit(1)
	}
}

// withContainer loads configuration, wires the application and runs fn.
// Work is bounded by SCORE_TIMEOUT.
func withContainer(ctx context.Context, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	if cfg.Scoring.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Scoring.Timeout)
		defer cancel()
	}
	return fn(ctx, c)
}
