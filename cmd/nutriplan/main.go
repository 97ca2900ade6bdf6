package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nutriplan/internal/app"
	"nutriplan/internal/config"
	"nutriplan/internal/database"
	"nutriplan/internal/llm"
	"nutriplan/internal/logging"
	"nutriplan/internal/metrics"
	"nutriplan/internal/planner"
	"nutriplan/internal/remote"
	"nutriplan/internal/sheet"
	"nutriplan/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nutriplan",
	Short: "Weekly lunch and dinner planner backed by a shared spreadsheet",
	Long: `nutriplan reads a dish catalogue from the lunch and dinner tabs of a
shared spreadsheet, generates menus with an LLM (falling back to a
deterministic rotation), and keeps saved plans locally and in the sheet.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if configPath != "" {
			if err := cfg.ApplyFile(configPath); err != nil {
				return err
			}
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.LogDevelopment)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// env is the wired application for one command run.
type env struct {
	app     *app.App
	db      *database.DB
	metrics *metrics.Store
	closers []llm.Closer
}

func (e *env) Close() {
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close client", zap.Error(err))
		}
	}
	if err := e.db.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}

// bootstrap opens the database, builds the generator and restores local
// state. Without LLM credentials menus use the rotation.
func bootstrap(ctx context.Context) (*env, error) {
	db, err := database.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	e := &env{db: db, metrics: metrics.NewStore(db.SQL)}

	var gen planner.Generator
	textGen, closer, err := llm.NewFromConfig(ctx, cfg)
	switch {
	case err != nil:
		logger.Warn("LLM unavailable, menus will use rotation", zap.Error(err))
	default:
		gen = planner.NewLLMGenerator(textGen)
		if closer != nil {
			e.closers = append(e.closers, closer)
		}
	}

	fetcher := sheet.NewFetcher(cfg.SpreadsheetURL, nil, logger)
	e.app = app.NewApp(
		fetcher,
		planner.NewEngine(gen, logger),
		remote.NewSaver(nil, logger),
		store.New(db.SQL),
		e.metrics,
		cfg.Sources,
		logger,
	)

	if err := e.app.Restore(ctx); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to restore local state: %w", err)
	}
	return e, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides NUTRIPLAN_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(syncCmd, dishesCmd, generateCmd, historyCmd, deleteCmd, statsCmd, usageCmd, sourcesCmd, serveCmd, botCmd)
}

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
