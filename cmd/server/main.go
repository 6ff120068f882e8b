/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the recurrence engine. Serves the HTTP API with
  the scheduled generation and cleanup workers, or runs a single worker
  pass and exits.

COMMANDS:
  serve            HTTP API plus scheduled workers (default)
  generate         One generation pass, then exit
  cleanup          One cleanup sweep, then exit
  validate-config  Load and validate the config file

STARTUP SEQUENCE (serve):
  1. Load config (file, then RECURRENCE_* environment)
  2. Initialize SQLite store
  3. Build workers and their cron runners
  4. Create API handler and router
  5. Run server and runners until SIGINT/SIGTERM

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Runners stop scheduling new passes
  2. Server stops accepting connections and drains (30s timeout)
  3. Database connection is closed

EXAMPLES:
  # Defaults, writes recurrence.yaml if missing
  ./server serve

  # In-memory database, no background workers
  RECURRENCE_DB=":memory:" ./server serve --no-workers

  # Nightly cron job instead of the built-in scheduler
  ./server cleanup --config /etc/recurrence.yaml

SEE ALSO:
  - config/config.go: Config file and environment variables
  - api/server.go: Router configuration
  - worker/runner.go: Cron scheduling
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/warp/recurrence-engine/api"
	"github.com/warp/recurrence-engine/config"
	"github.com/warp/recurrence-engine/store/sqlite"
	"github.com/warp/recurrence-engine/worker"
)

const shutdownTimeout = 30 * time.Second

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Recurrence engine",
		Long:          "Expands recurring event rules into stored instances and serves them with per-instance exceptions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "recurrence.yaml", "config file path")

	serve := newServeCommand(opts)
	cmd.AddCommand(serve)
	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newCleanupCommand(opts))
	cmd.AddCommand(newValidateConfigCommand(opts))

	// Bare invocation serves.
	cmd.RunE = serve.RunE
	cmd.Flags().AddFlagSet(serve.Flags())
	return cmd
}

// =============================================================================
// COMMANDS
// =============================================================================

func newServeCommand(opts *rootOptions) *cobra.Command {
	var noWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the scheduled workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if noWorkers {
				cfg.Workers.Disabled = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "do not schedule generation and cleanup")
	return cmd
}

func newGenerateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Run one generation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkers(cmd.Context(), opts, func(ctx context.Context, ws api.Workers, logger *slog.Logger) error {
				report, err := ws.Generation.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rules: %d, created: %d, existing: %d, failed: %d\n",
					report.RulesProcessed, report.InstancesCreated, report.InstancesExisted, len(report.Failures))
				for _, f := range report.Failures {
					logger.Warn("rule skipped", "rule_id", f.RuleID, "error", f.Err)
				}
				return nil
			})
		},
	}
}

func newCleanupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run one cleanup sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkers(cmd.Context(), opts, func(ctx context.Context, ws api.Workers, _ *slog.Logger) error {
				report, err := ws.Cleanup.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted: %d, dependents: %d, skipped: %d\n",
					len(report.Deleted), report.DependentsDeleted, len(report.Skipped))
				return nil
			})
		},
	}
}

func newValidateConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := loadConfig(opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", opts.configPath)
			return nil
		},
	}
}

// =============================================================================
// WIRING
// =============================================================================

func loadConfig(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", opts.configPath, err)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newWorkers(cfg *config.Config, store *sqlite.Store, logger *slog.Logger) (api.Workers, error) {
	clock := worker.RealClock{}

	gen := worker.NewGenerationWorker(store, store, clock, logger)
	gen.Horizon = cfg.Horizon()
	gen.Retention = cfg.Retention()

	clean := worker.NewCleanupWorker(store, clock, logger)
	clean.Retention = cfg.Retention()
	clean.Policy = cfg.Policy()

	ws := api.Workers{Generation: gen, Cleanup: clean}
	if cfg.Workers.Disabled {
		return ws, nil
	}

	genSchedule, err := worker.ParseSchedule(cfg.Workers.GenerationCron)
	if err != nil {
		return ws, err
	}
	cleanSchedule, err := worker.ParseSchedule(cfg.Workers.CleanupCron)
	if err != nil {
		return ws, err
	}
	ws.GenerationRunner = worker.NewRunner("generation", genSchedule, gen.Run, clock, logger)
	ws.CleanupRunner = worker.NewRunner("cleanup", cleanSchedule, clean.Run, clock, logger)
	return ws, nil
}

// withWorkers opens the store, builds unscheduled workers and runs fn.
func withWorkers(ctx context.Context, opts *rootOptions, fn func(context.Context, api.Workers, *slog.Logger) error) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	cfg.Workers.Disabled = true

	store, err := sqlite.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	ws, err := newWorkers(cfg, store, logger)
	if err != nil {
		return err
	}
	return fn(ctx, ws, logger)
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := sqlite.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	ws, err := newWorkers(cfg, store, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(store, ws, logger)
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.CORSOrigins})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Listen, "database", cfg.Database)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	for _, runner := range []*worker.Runner{ws.GenerationRunner, ws.CleanupRunner} {
		if runner == nil {
			continue
		}
		runner := runner
		g.Go(func() error { return runner.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
