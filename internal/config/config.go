package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the SIP backtesting tools.
type Config struct {
	Storage  Storage      `yaml:"storage"`
	Server   Server       `yaml:"server"`
	Alpaca   Alpaca       `yaml:"alpaca"`
	Logging  Logging      `yaml:"logging"`
	Gather   GatherConfig `yaml:"gather"`
	Backtest Backtest     `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir" default:"data"`
	SQLitePath string `yaml:"sqlite_path" default:"data/sip.db"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host" default:"127.0.0.1"`
	Port     int    `yaml:"port" default:"8080"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for US daily bars and the trading
// calendar.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed" default:"iex"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"text"`
}

// GatherConfig controls daily bar gathering for each market.
type GatherConfig struct {
	USDaily GatherJobConfig `yaml:"us_daily"`
	CNDaily GatherJobConfig `yaml:"cn_daily"`
}

// GatherJobConfig holds parameters for a single data gathering job.
type GatherJobConfig struct {
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	BatchSize       int      `yaml:"batch_size"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	BaseURL         string   `yaml:"base_url"`
}

// Backtest describes the default comparison run by cmd/sip-backtest.
type Backtest struct {
	Symbol            string           `yaml:"symbol"`
	Market            string           `yaml:"market" default:"cn"`
	CSVPath           string           `yaml:"csv_path"`
	StartDate         string           `yaml:"start_date"`
	EndDate           string           `yaml:"end_date"`
	MonthlyInvestment float64          `yaml:"monthly_investment"`
	TimelinePath      string           `yaml:"timeline_path"`
	Strategies        []StrategyConfig `yaml:"strategies"`
}

// StrategyConfig names one timing policy in the comparison, e.g.
// {label: "Day 15", policy: "day:15"}.
type StrategyConfig struct {
	Label  string `yaml:"label"`
	Policy string `yaml:"policy"`
}

// Start parses StartDate; an empty value yields the zero time.
func (b Backtest) Start() (time.Time, error) { return parseDate(b.StartDate) }

// End parses EndDate; an empty value yields the zero time.
func (b Backtest) End() (time.Time, error) { return parseDate(b.EndDate) }

// Validate reports the first problem with the backtest section.
func (b Backtest) Validate() error {
	if !(b.MonthlyInvestment > 0) {
		return fmt.Errorf("backtest.monthly_investment must be positive, got %v", b.MonthlyInvestment)
	}
	if b.Symbol == "" && b.CSVPath == "" {
		return fmt.Errorf("backtest.symbol or backtest.csv_path is required")
	}
	start, err := b.Start()
	if err != nil {
		return fmt.Errorf("backtest.start_date: %w", err)
	}
	end, err := b.End()
	if err != nil {
		return fmt.Errorf("backtest.end_date: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("backtest.end_date %s is before start_date %s", b.EndDate, b.StartDate)
	}
	labels := make(map[string]int, len(b.Strategies))
	for i, s := range b.Strategies {
		if s.Label == "" || s.Policy == "" {
			return fmt.Errorf("backtest.strategies[%d]: label and policy are required", i)
		}
		if j, dup := labels[s.Label]; dup {
			return fmt.Errorf("backtest.strategies[%d]: label %q already used by strategies[%d]", i, s.Label, j)
		}
		labels[s.Label] = i
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills unset fields from their `default` tags and then applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the config file location from SIP_CONFIG, falling back to
// config/sip.yaml.
func Path() string {
	if p := os.Getenv("SIP_CONFIG"); p != "" {
		return p
	}
	return "config/sip.yaml"
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("SIP_SYMBOL"); v != "" {
		cfg.Backtest.Symbol = v
	}
	if v := os.Getenv("SIP_MONTHLY_INVESTMENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SIP_MONTHLY_INVESTMENT: %w", err)
		}
		cfg.Backtest.MonthlyInvestment = f
	}
	return nil
}
