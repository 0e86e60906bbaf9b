package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage the YAML (or JSON) file that describes one paper trading session.

Sections:
  account    - Account id, currency and starting balance
  engine     - Commission and slippage rates applied to every fill
  risk       - Circuit breaker thresholds; 0 disables a breaker
  gate       - paper_trading, kill_switch and how long flag reads are cached
  control    - Where pause, emergency kill and reset requests live (file, sqlite, memory)
  allocation - Per-strategy capital shares and the per-trade fraction
  journal    - Trade and snapshot sink (csv, sqlite, none)
  log        - Level and format of the structured log

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init -o papertrade.yaml
  trader config validate -f papertrade.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "papertrade.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  trader run -c %s --signals signals.csv\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Account: %s (%s %s)\n", cfg.Account.ID, money(cfg.Account.Balance), cfg.Account.Currency)
	fmt.Fprintf(out, "  Paper trading: %t  Kill switch: %t\n", cfg.Gate.PaperTrading, cfg.Gate.KillSwitch)
	fmt.Fprintf(out, "  Costs: commission %s  slippage %s\n", pct(cfg.Engine.CommissionRate*100), pct(cfg.Engine.SlippageRate*100))
	fmt.Fprintf(out, "  Breakers: %d losses, %s/hour, daily %s, total %s, win rate %s after %d trades\n",
		cfg.Risk.MaxConsecutiveLosses, money(cfg.Risk.MaxHourlyLoss),
		pct(cfg.Risk.MaxDailyDrawdown*100), pct(cfg.Risk.MaxTotalDrawdown*100),
		pct(cfg.Risk.MinWinRate*100), cfg.Risk.MinTradesForWinRate)
	fmt.Fprintf(out, "  Allocation: %s per trade of a %s default share\n",
		pct(cfg.Allocation.MaxTradeFraction*100), pct(cfg.Allocation.DefaultShare*100))
	fmt.Fprintf(out, "  Control: %s  Journal: %s\n", cfg.Control.Type, cfg.Journal.Type)
	return nil
}
