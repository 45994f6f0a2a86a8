// Command lor-migrate applies the SQL files in MIGRATIONS_DIR to the configured
// database and records each one in the migrations ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lor-api/internal/platform/config"
	"lor-api/internal/platform/migrate"
	"lor-api/internal/platform/observability"
	"lor-api/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "lor-migrate",
		Short:         "Apply pending SQL migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runUp,
	}
	rootCmd.AddCommand(newUpCmd(), newStatusCmd())
	return rootCmd.ExecuteContext(ctx)
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every migration not yet recorded in the ledger",
		RunE:  runUp,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migration files and whether each has been applied",
		RunE:  runStatus,
	}
}

func runUp(cmd *cobra.Command, _ []string) error {
	return withRunner(cmd.Context(), func(ctx context.Context, r *migrate.Runner) error {
		_, err := r.Up(ctx)
		return err
	})
}

func runStatus(cmd *cobra.Command, _ []string) error {
	return withRunner(cmd.Context(), func(ctx context.Context, r *migrate.Runner) error {
		statuses, err := r.Status(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(out, "%-8s %s\n", state, s.Name)
		}
		return nil
	})
}

func withRunner(ctx context.Context, fn func(context.Context, *migrate.Runner) error) error {
	cfg, err := config.LoadMigrate()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := observability.NewLogger(cfg.Env, "lor-migrate")

	// Migrations run serially; one connection is enough.
	cfg.Database.MinConns, cfg.Database.MaxConns = 1, 1
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("storage connection failed")
		return err
	}
	defer store.Close()

	runner := migrate.NewRunner(store.Ledger, os.DirFS(cfg.MigrationDir), logger.With().Str("dir", cfg.MigrationDir).Logger())
	if err := fn(ctx, runner); err != nil {
		logger.Error().Err(err).Msg("migration failed")
		return err
	}
	return nil
}
