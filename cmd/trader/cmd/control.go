package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/control"
	"github.com/rustyeddy/papertrade/gate"
	"github.com/rustyeddy/papertrade/internal/app"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Inspect or change the persisted trading controls",
	Long: `Read and write the pause and emergency kill flags in the configured
control store. Running traders pick up changes within gate.cache_ttl.

Subcommands:
  status       - Show the flags and the current gate decision
  pause        - Pause trading
  resume       - Clear the pause
  kill         - Activate the emergency kill switch
  unkill       - Clear the emergency kill switch
  reset-daily  - Start a new trading day for the daily drawdown breaker
  reset-peak   - Measure total drawdown from the current portfolio value

Reset requests are picked up by running traders on their next signal.

Examples:
  trader control pause "earnings tomorrow"
  trader control kill -c papertrade.yaml
  trader control reset-daily "market open"`,
}

var controlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show control flags and the gate decision",
	Args:  cobra.NoArgs,
	RunE:  runControlStatus,
}

var controlPauseCmd = &cobra.Command{
	Use:   "pause [reason]",
	Short: "Pause trading",
	RunE:  setFlag(func(s control.Store) setter { return s.SetPaused }, true, "paused"),
}

var controlResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Clear the pause flag",
	Args:  cobra.NoArgs,
	RunE:  setFlag(func(s control.Store) setter { return s.SetPaused }, false, "resumed"),
}

var controlKillCmd = &cobra.Command{
	Use:   "kill [reason]",
	Short: "Activate the emergency kill switch",
	RunE:  setFlag(func(s control.Store) setter { return s.SetEmergencyKill }, true, "emergency kill switch activated"),
}

var controlUnkillCmd = &cobra.Command{
	Use:   "unkill",
	Short: "Clear the emergency kill switch",
	Args:  cobra.NoArgs,
	RunE:  setFlag(func(s control.Store) setter { return s.SetEmergencyKill }, false, "emergency kill switch cleared"),
}

var controlResetDailyCmd = &cobra.Command{
	Use:   "reset-daily [reason]",
	Short: "Request a new daily drawdown baseline",
	RunE:  requestReset(func(s control.Store) requester { return s.RequestDailyReset }, "daily baseline reset requested"),
}

var controlResetPeakCmd = &cobra.Command{
	Use:   "reset-peak [reason]",
	Short: "Request a new peak capital for the total drawdown breaker",
	RunE:  requestReset(func(s control.Store) requester { return s.RequestPeakReset }, "peak reset requested"),
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.AddCommand(controlStatusCmd, controlPauseCmd, controlResumeCmd, controlKillCmd, controlUnkillCmd,
		controlResetDailyCmd, controlResetPeakCmd)
}

type requester func(ctx context.Context, reason string) error

func requestReset(pick func(control.Store) requester, done string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		store, err := app.OpenControl(cfg.Control)
		if err != nil {
			return err
		}
		defer store.Close()

		reason := strings.Join(args, " ")
		if reason == "" {
			reason = "operator"
		}
		if err := pick(store)(context.Background(), reason); err != nil {
			return err
		}
		log.Info("reset requested", "action", done, "reason", reason)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", strings.ToUpper(done[:1])+done[1:])
		return nil
	}
}

type setter func(ctx context.Context, active bool, reason string) error

func setFlag(pick func(control.Store) setter, active bool, done string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		store, err := app.OpenControl(cfg.Control)
		if err != nil {
			return err
		}
		defer store.Close()

		reason := strings.Join(args, " ")
		if active && reason == "" {
			reason = "operator"
		}
		if err := pick(store)(context.Background(), active, reason); err != nil {
			return err
		}
		log.Info("control flag changed", "action", done, "reason", reason)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Trading %s\n", done)
		return nil
	}
}

func runControlStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	store, err := app.OpenControl(cfg.Control)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Control store: %s\n", cfg.Control.Type)
	fmt.Fprintf(out, "  Paper trading: %t\n", cfg.Gate.PaperTrading)
	fmt.Fprintf(out, "  Kill switch:   %t\n", cfg.Gate.KillSwitch)
	printFlag(ctx, out, "Emergency kill", store.EmergencyKill)
	printFlag(ctx, out, "Paused", store.Paused)
	printRequest(ctx, out, "Daily reset", store.DailyReset)
	printRequest(ctx, out, "Peak reset", store.PeakReset)

	checker := gate.NewChecker(cfg.Gate.PaperTrading, cfg.Gate.KillSwitch, store,
		gate.WithCacheTTL(0), gate.WithLogger(log))
	d := checker.Check(ctx, false)
	if d.Allowed {
		fmt.Fprintln(out, "\nGate: ✓ trading allowed")
	} else {
		fmt.Fprintf(out, "\nGate: ✗ %s\n", d.Reason)
	}
	return nil
}

func printFlag(ctx context.Context, out io.Writer, name string, read func(context.Context) (control.Flag, error)) {
	f, err := read(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(out, "  %-14s unreadable (%v)\n", name+":", err)
	case f.Active:
		fmt.Fprintf(out, "  %-14s true (%s, since %s)\n", name+":", f.Reason, f.UpdatedAt.Format("2006-01-02 15:04:05"))
	default:
		fmt.Fprintf(out, "  %-14s false\n", name+":")
	}
}

func printRequest(ctx context.Context, out io.Writer, name string, read func(context.Context) (control.Flag, error)) {
	f, err := read(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(out, "  %-14s unreadable (%v)\n", name+":", err)
	case f.Active:
		fmt.Fprintf(out, "  %-14s requested %s (%s)\n", name+":", f.UpdatedAt.Format("2006-01-02 15:04:05"), f.Reason)
	default:
		fmt.Fprintf(out, "  %-14s never\n", name+":")
	}
}
