// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete YAML configuration surface. It covers exactly
// spec §6's "Market / Strategy / Allocation / Tuning" groups plus the
// transport endpoints and ambient app/system settings. Secrets (private
// key, wallet address) are never read from this struct — LoadSecrets reads
// them from the environment.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Market     MarketConfig     `yaml:"market"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Allocation AllocationConfig `yaml:"allocation"`
	Tuning     TuningConfig     `yaml:"tuning"`
	Transport  TransportConfig  `yaml:"transport"`
	System     SystemConfig     `yaml:"system"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// AppConfig contains process-level settings.
type AppConfig struct {
	Name string `yaml:"name"`
}

// MarketConfig identifies the traded coin, its Hyperliquid spot asset id,
// and the network.
type MarketConfig struct {
	Coin string `yaml:"coin"`
	// AssetIndex is Hyperliquid's spot asset id for Coin (the "a" field on
	// every signed order/cancel action): 10000 + the coin's index in the
	// spotMeta universe. Operators look this up once per listing; the
	// engine does not re-derive it since universe order can in principle
	// change and we want the pinned value, not a best-effort lookup.
	AssetIndex int32 `yaml:"asset_index"`
	Testnet    bool  `yaml:"testnet"`
}

// StrategyConfig is the grid/quoting shape (spec §6 "Strategy").
type StrategyConfig struct {
	StartPx       string `yaml:"start_px"` // decimal string, parsed by the caller
	NOrders       int    `yaml:"n_orders"`
	Tick          string `yaml:"tick"` // decimal string; default 0.003
	OrderSz       string `yaml:"order_sz"`
	NSeededLevels int    `yaml:"n_seeded_levels"` // >0 = derive startup boundary from allocation when no asks rest; 0 = off
}

// AllocationConfig is the operator-set ceiling on each asset (spec §6
// "Allocation").
type AllocationConfig struct {
	AllocatedToken string `yaml:"allocated_token"`
	AllocatedUSDC  string `yaml:"allocated_usdc"`
}

// TuningConfig is the tick/diff/emit knobs (spec §6 "Tuning").
type TuningConfig struct {
	IntervalS         float64 `yaml:"interval_s"`
	DeadZoneBps       float64 `yaml:"dead_zone_bps"`
	PriceToleranceBps float64 `yaml:"price_tolerance_bps"`
	SizeTolerancePct  float64 `yaml:"size_tolerance_pct"`
	ReconcileEvery    int     `yaml:"reconcile_every"`
	MinNotional       string  `yaml:"min_notional"`
}

// TransportConfig is the exchange endpoint configuration. Not named in
// spec.md's "abstract" configuration surface but required for anything to
// actually connect.
type TransportConfig struct {
	RestBaseURL        string        `yaml:"rest_base_url"`
	WsURL              string        `yaml:"ws_url"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	WsHeartbeatTimeout time.Duration `yaml:"ws_heartbeat_timeout"`
}

// SystemConfig contains operational settings.
type SystemConfig struct {
	LogLevel     string `yaml:"log_level"` // one of DEBUG/INFO/WARN/ERROR/FATAL, checked in Validate
	CancelOnExit bool   `yaml:"cancel_on_exit"`
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	EnableMetrics bool   `yaml:"enable_metrics"`
	ServiceName   string `yaml:"service_name"`
	MetricsPort   int    `yaml:"metrics_port"`
}

// Secrets holds the environment-only credentials (spec §6: "Secrets:
// private key and wallet address come from the environment, never from
// config").
type Secrets struct {
	PrivateKey    Secret
	WalletAddress string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadSecrets reads wallet credentials from the environment. Never from the
// YAML config file.
func LoadSecrets() (*Secrets, error) {
	pk := os.Getenv("HL_PRIVATE_KEY")
	if pk == "" {
		return nil, fmt.Errorf("HL_PRIVATE_KEY is required")
	}
	addr := os.Getenv("HL_WALLET_ADDRESS")
	if addr == "" {
		return nil, fmt.Errorf("HL_WALLET_ADDRESS is required")
	}
	return &Secrets{PrivateKey: Secret(pk), WalletAddress: addr}, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	if c.Market.Coin == "" {
		errs = append(errs, ValidationError{Field: "market.coin", Message: "coin is required"}.Error())
	}
	if c.Market.AssetIndex <= 0 {
		errs = append(errs, ValidationError{Field: "market.asset_index", Value: c.Market.AssetIndex, Message: "must be a positive Hyperliquid spot asset id"}.Error())
	}
	if c.Strategy.StartPx == "" {
		errs = append(errs, ValidationError{Field: "strategy.start_px", Message: "start_px is required"}.Error())
	}
	if c.Strategy.NOrders < 2 {
		errs = append(errs, ValidationError{Field: "strategy.n_orders", Value: c.Strategy.NOrders, Message: "must be at least 2"}.Error())
	}
	if c.Strategy.OrderSz == "" {
		errs = append(errs, ValidationError{Field: "strategy.order_sz", Message: "order_sz is required"}.Error())
	}
	if c.Allocation.AllocatedToken == "" || c.Allocation.AllocatedUSDC == "" {
		errs = append(errs, ValidationError{Field: "allocation", Message: "allocated_token and allocated_usdc are required"}.Error())
	}
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		errs = append(errs, ValidationError{Field: "system.log_level", Value: c.System.LogLevel, Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", "))}.Error())
	}
	if c.Tuning.ReconcileEvery <= 0 {
		errs = append(errs, ValidationError{Field: "tuning.reconcile_every", Value: c.Tuning.ReconcileEvery, Message: "must be positive"}.Error())
	}
	if c.Tuning.IntervalS <= 0 {
		errs = append(errs, ValidationError{Field: "tuning.interval_s", Value: c.Tuning.IntervalS, Message: "must be positive"}.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

// String returns a string representation of the configuration. There is
// nothing sensitive in Config itself (secrets live in Secrets), but this
// mirrors the teacher's redaction convention for any future field that
// needs it.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the baseline configuration, overridden by whatever
// the YAML file specifies.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Name: "hyperliquidity-mm"},
		Market: MarketConfig{
			Testnet: true,
		},
		Strategy: StrategyConfig{
			Tick: "0.003",
		},
		Tuning: TuningConfig{
			IntervalS:         3.0,
			DeadZoneBps:       5.0,
			PriceToleranceBps: 1.0,
			SizeTolerancePct:  1.0,
			ReconcileEvery:    20,
			MinNotional:       "0",
		},
		Transport: TransportConfig{
			RestBaseURL:        "https://api.hyperliquid-testnet.xyz",
			WsURL:              "wss://api.hyperliquid-testnet.xyz/ws",
			RequestTimeout:     10 * time.Second,
			WsHeartbeatTimeout: 30 * time.Second,
		},
		System: SystemConfig{
			LogLevel:     "INFO",
			CancelOnExit: true,
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
			ServiceName:   "hyperliquidity-mm",
			MetricsPort:   9090,
		},
	}
}
