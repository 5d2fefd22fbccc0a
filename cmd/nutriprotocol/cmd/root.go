package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/nutriprotocol/internal/core/config"
	"github.com/solatis/nutriprotocol/internal/core/db"
	"github.com/solatis/nutriprotocol/internal/core/logging"
)

// Version is the CLI release.
const Version = "0.1.0"

// environment is the per-invocation state shared by subcommands.
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"db-url":     "database.url",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// NewRootCmd builds the command tree. Command output goes to the command's
// out writer; logs go to its err writer.
func NewRootCmd() *cobra.Command {
	env := &environment{}

	root := &cobra.Command{
		Use:           "nutriprotocol",
		Short:         "Therapeutic nutrition protocol engine",
		Long:          `nutriprotocol selects applicable supplement rules for a user and estimates how well a meal plan covers therapeutic targets.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if env.logger != nil {
				defer func() { _ = env.logger.Sync() }()
			}
			path, _ := cmd.Flags().GetString("metrics-out")
			if path == "" {
				return nil
			}
			return env.writeMetrics(path)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, console)")
	flags.String("metrics-out", "", "write collected metrics in Prometheus text format to this file on exit")

	root.AddCommand(
		newRulesCmd(env),
		newCoverageCmd(env),
		newMigrateCmd(env),
	)
	return root
}

// Execute runs the CLI with process arguments.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// load resolves configuration (flags > env > file > defaults) and builds the logger.
func (e *environment) load(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")

	v, err := config.NewViper(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}

	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.logger = logger
	e.registry = prometheus.NewRegistry()
	return nil
}

// writeMetrics gathers the invocation's registry into path.
func (e *environment) writeMetrics(path string) error {
	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer f.Close()

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return f.Close()
}

// openStore opens the configured database and its named-query store.
// The caller closes the returned handle.
func (e *environment) openStore(ctx context.Context) (*db.Store, *sqlx.DB, error) {
	database, err := db.Open(ctx, e.cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := db.NewStore(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return store, database, nil
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
