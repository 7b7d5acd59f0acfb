// =============================================================================
// COVID Scenes - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// shares the configuration and logger built here.
//
// COBRA CLI STRUCTURE:
//   rootCmd (scenes)
//   ├── renderCmd   (scenes render)    draw scenes to files
//   ├── serveCmd    (scenes serve)     HTTP + websocket session
//   ├── presentCmd  (scenes present)   terminal session
//   ├── validateCmd (scenes validate)  parse and report malformed rows
//   ├── exportCmd   (scenes export)    write aggregates as a workbook
//   └── versionCmd  (scenes version)
//
// CONFIGURATION:
//   PersistentPreRunE loads config.yaml (or --config), applies SCENES_*
//   environment overrides and --source, then builds the zap logger.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/config"
	"github.com/ginjaninja78/covid-scenes/internal/loader"
	"github.com/ginjaninja78/covid-scenes/internal/logging"
	"github.com/ginjaninja78/covid-scenes/internal/store"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

var (
	// cfgFile holds the path to the main configuration file.
	cfgFile string

	// verbose forces debug logging.
	verbose bool

	// sourceOverride replaces the configured source when set.
	sourceOverride string

	// logFile sends logs to a file instead of stderr.
	logFile string
)

// Set by PersistentPreRunE.
var (
	mainConfig *config.MainConfig
	logger     = zap.NewNop()
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "scenes",
	Short: "COVID Scenes - narrative charts of US COVID-19 case and death counts",
	Long: `COVID Scenes loads a table of per-state, per-date COVID-19 case and death
counts and presents it as three scenes:

  0  Heatmap      total cases by state, peak state highlighted
  1  Time series  daily cases and deaths across all states
  2  Comparison   cases against deaths per state, filterable by state

Example Usage:
  scenes render                          # draw all scenes into ./output
  scenes render --scene 2 --state NY     # comparison scene, all states and NY
  scenes serve                           # browse the scenes over HTTP
  scenes present --source us-states.csv  # step through scenes in the terminal
  scenes validate                        # report malformed rows`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load main config: %w", err)
		}
		if sourceOverride != "" {
			cfg.Source = sourceOverride
		}
		mainConfig = cfg

		var outputs []string
		if logFile != "" {
			outputs = []string{logFile}
		}
		l, err := logging.New(cfg.LogLevel, verbose, outputs...)
		if err != nil {
			return err
		}
		logger = l

		logger.Debug("configuration loaded",
			zap.String("config", cfgFile),
			zap.String("source", cfg.Source),
			zap.String("policy", cfg.MalformedPolicy),
			zap.String("navigation", cfg.Navigation),
		)
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	rootCmd.PersistentFlags().StringVar(
		&sourceOverride,
		"source",
		"",
		"Dataset path or http(s) URL (overrides the configured source)",
	)

	rootCmd.PersistentFlags().StringVar(
		&logFile,
		"log-file",
		"",
		"Write logs to this file instead of stderr",
	)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newLoader builds the dataset loader, with the SQLite cache when one is
// configured. The returned func closes the cache.
func newLoader(cfg *config.MainConfig) (*loader.Loader, func(), error) {
	tr, err := cfg.Transformer()
	if err != nil {
		return nil, nil, err
	}
	opts := loader.Options{
		CSV:       cfg.CSVSettings.ParserSettings(),
		Parse:     cfg.ParseOptions(),
		Timeout:   cfg.FetchTimeout,
		Transform: tr,
	}

	if cfg.CachePath == "" {
		return loader.New(opts, nil, logger), func() {}, nil
	}

	cache, err := store.Open(cfg.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}
	closeCache := func() {
		if err := cache.Close(); err != nil {
			logger.Warn("failed to close cache", zap.Error(err))
		}
	}
	return loader.New(opts, cache, logger), closeCache, nil
}
