package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/config"
	"github.com/rustyeddy/papertrade/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Paper trading engine with layered safety controls",
	Long: `Trader simulates order execution against supplied prices and sends
every trade through a layered safety system.

It provides tools for:
  - Placing manual paper trades through the execution gate
  - Replaying CSV signal files through the strategy router
  - Pausing, resuming and emergency-stopping trading
  - Querying the trade journal`,
	SilenceUsage: true,
}

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log.format (text, json)")
}

// loadConfig reads --config, or the defaults when it is not set, and
// applies the logging overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// setup loads configuration and installs the process logger. Logs go to
// stderr so command output stays clean.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := app.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(log)
	return cfg, log, nil
}

// openApp builds the full trading stack.
func openApp() (*app.App, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return a, nil
}
