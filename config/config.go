package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/papertrade/risk"
)

// Config is the complete paper trading configuration.
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Gate       GateConfig       `json:"gate" yaml:"gate"`
	Control    ControlConfig    `json:"control" yaml:"control"`
	Allocation AllocationConfig `json:"allocation" yaml:"allocation"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// EngineConfig is the execution cost model.
type EngineConfig struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate   float64 `json:"slippage_rate" yaml:"slippage_rate"`
}

// RiskConfig holds the circuit breaker thresholds. Zero disables a breaker.
type RiskConfig struct {
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	MaxHourlyLoss        float64 `json:"max_hourly_loss" yaml:"max_hourly_loss"`
	MaxDailyDrawdown     float64 `json:"max_daily_drawdown" yaml:"max_daily_drawdown"`
	MaxTotalDrawdown     float64 `json:"max_total_drawdown" yaml:"max_total_drawdown"`
	MinWinRate           float64 `json:"min_win_rate" yaml:"min_win_rate"`
	MinTradesForWinRate  int     `json:"min_trades_for_win_rate" yaml:"min_trades_for_win_rate"`
}

// Policy converts the thresholds for the breakers.
func (r RiskConfig) Policy() risk.Policy {
	return risk.Policy{
		MaxConsecutiveLosses: r.MaxConsecutiveLosses,
		MaxHourlyLoss:        r.MaxHourlyLoss,
		MaxDailyDrawdown:     r.MaxDailyDrawdown,
		MaxTotalDrawdown:     r.MaxTotalDrawdown,
		MinWinRate:           r.MinWinRate,
		MinTradesForWinRate:  r.MinTradesForWinRate,
	}
}

type GateConfig struct {
	PaperTrading bool   `json:"paper_trading" yaml:"paper_trading"`
	KillSwitch   bool   `json:"kill_switch" yaml:"kill_switch"`
	CacheTTL     string `json:"cache_ttl" yaml:"cache_ttl"` // e.g. "1s", "0s" disables
}

// ParseCacheTTL converts the cache TTL string to a time.Duration.
func (g GateConfig) ParseCacheTTL() (time.Duration, error) {
	if g.CacheTTL == "" {
		return time.Second, nil
	}
	return time.ParseDuration(g.CacheTTL)
}

// ControlConfig selects where the pause and emergency kill flags live.
type ControlConfig struct {
	Type   string `json:"type" yaml:"type"` // "file", "sqlite" or "memory"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// AllocationConfig splits capital between strategies.
type AllocationConfig struct {
	MaxTradeFraction float64            `json:"max_trade_fraction" yaml:"max_trade_fraction"`
	DefaultShare     float64            `json:"default_share" yaml:"default_share"`
	Strategies       map[string]float64 `json:"strategies,omitempty" yaml:"strategies,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile    string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	SnapshotsFile string `json:"snapshots_file,omitempty" yaml:"snapshots_file,omitempty"`
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// LoadFromFile loads configuration from a YAML or JSON file. Fields missing
// from the file keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file, YAML for .yaml/.yml and JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if !fraction(c.Engine.CommissionRate) {
		return fmt.Errorf("engine.commission_rate must be between 0 and 1")
	}
	if !fraction(c.Engine.SlippageRate) {
		return fmt.Errorf("engine.slippage_rate must be between 0 and 1")
	}

	r := c.Risk
	if r.MaxConsecutiveLosses < 0 || r.MinTradesForWinRate < 0 {
		return fmt.Errorf("risk trade counts must not be negative")
	}
	if r.MaxHourlyLoss < 0 {
		return fmt.Errorf("risk.max_hourly_loss must not be negative")
	}
	for name, v := range map[string]float64{
		"risk.max_daily_drawdown": r.MaxDailyDrawdown,
		"risk.max_total_drawdown": r.MaxTotalDrawdown,
		"risk.min_win_rate":       r.MinWinRate,
	} {
		if !fraction(v) {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}

	ttl, err := c.Gate.ParseCacheTTL()
	if err != nil {
		return fmt.Errorf("gate.cache_ttl: %w", err)
	}
	if ttl < 0 {
		return fmt.Errorf("gate.cache_ttl must not be negative")
	}

	switch c.Control.Type {
	case "memory":
	case "file":
		if c.Control.Dir == "" {
			return fmt.Errorf("control.dir required for file type")
		}
	case "sqlite":
		if c.Control.DBPath == "" {
			return fmt.Errorf("control.db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("control.type must be 'file', 'sqlite' or 'memory'")
	}

	a := c.Allocation
	if !fraction(a.MaxTradeFraction) {
		return fmt.Errorf("allocation.max_trade_fraction must be between 0 and 1")
	}
	if !fraction(a.DefaultShare) {
		return fmt.Errorf("allocation.default_share must be between 0 and 1")
	}
	var total float64
	for name, share := range a.Strategies {
		if !fraction(share) {
			return fmt.Errorf("allocation.strategies.%s must be between 0 and 1", name)
		}
		total += share
	}
	if total > 1+1e-9 {
		return fmt.Errorf("allocation.strategies shares sum to %.2f, more than 1", total)
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.SnapshotsFile == "" {
			return fmt.Errorf("journal trades_file and snapshots_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	p := risk.DefaultPolicy()
	return &Config{
		Account: AccountConfig{
			ID:       "PAPER-001",
			Currency: "USD",
			Balance:  100000,
		},
		Engine: EngineConfig{
			CommissionRate: 0.001,
			SlippageRate:   0.001,
		},
		Risk: RiskConfig{
			MaxConsecutiveLosses: p.MaxConsecutiveLosses,
			MaxHourlyLoss:        p.MaxHourlyLoss,
			MaxDailyDrawdown:     p.MaxDailyDrawdown,
			MaxTotalDrawdown:     p.MaxTotalDrawdown,
			MinWinRate:           p.MinWinRate,
			MinTradesForWinRate:  p.MinTradesForWinRate,
		},
		Gate: GateConfig{
			PaperTrading: true,
			CacheTTL:     "1s",
		},
		Control: ControlConfig{
			Type: "file",
			Dir:  "./control",
		},
		Allocation: AllocationConfig{
			MaxTradeFraction: 0.10,
			DefaultShare:     0.25,
		},
		Journal: JournalConfig{
			Type:          "csv",
			TradesFile:    "./trades.csv",
			SnapshotsFile: "./snapshots.csv",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func fraction(x float64) bool {
	return x >= 0 && x <= 1
}
