package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/stashkeeper/internal/core/config"
	"github.com/solatis/stashkeeper/internal/core/db"
	"github.com/solatis/stashkeeper/internal/ingest"
)

const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "stashkeeper",
	Short: "StashKeeper container inventory rule engine",
	Long: `StashKeeper rewrites container inventories from authored swap rules
whenever the host initialises or resets a container.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// setupLogger installs the default slog logger from --log-level and --log-format.
func setupLogger(w io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("invalid --log-format %q (expected json or text)", logFormat)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig loads the config file and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if cfg.RadiusClamped {
		slog.Warn("engine.max_lookup_radius out of range, clamped", "radius", cfg.Engine.MaxLookupRadius)
	}
	return cfg, nil
}

func requireDatabaseURL(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("--db-url or database.url required")
	}
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if err := requireDatabaseURL(cfg); err != nil {
		return nil, err
	}
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// openStore opens the rule document store.
func openStore(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	if err := requireDatabaseURL(cfg); err != nil {
		return nil, err
	}
	store, err := db.OpenStore(ctx, cfg.DatabaseURL)
	if errors.Is(err, db.ErrPendingMigrations) {
		return nil, fmt.Errorf("%w - run 'stashkeeper migrate up' first", err)
	}
	return store, err
}

// ruleSources returns the configured rule sources. The returned func
// releases the database when one was opened.
func ruleSources(ctx context.Context, cfg *config.Config) (ingest.Sources, func(), error) {
	src := ingest.Sources{Dir: cfg.Rules.Dir}
	if !cfg.Rules.DBEnabled {
		return src, func() {}, nil
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return ingest.Sources{}, nil, err
	}
	src.DB = store
	return src, func() { store.Close() }, nil
}
