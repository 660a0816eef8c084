package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sip.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/sip/data"
  sqlite_path: "/tmp/sip/runs.db"
server:
  host: "0.0.0.0"
  port: 8080
  grpc_port: 9090
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  feed: "iex"
logging:
  level: "info"
  format: "json"
gather:
  us_daily:
    symbols: ["SPY", "QQQ"]
    start_date: "2020-01-01"
    batch_size: 100
    rate_limit_per_min: 200
  cn_daily:
    symbols: ["sz002958"]
    start_date: "2019-01-01"
    rate_limit_per_min: 60
backtest:
  symbol: "sz002958"
  market: "cn"
  start_date: "2020-01-01"
  monthly_investment: 1000
  strategies:
    - label: "Day 1"
      policy: "day:1"
    - label: "Lowest close (ideal)"
      policy: "lowest"
`)

	// Clear any environment overrides that might interfere.
	for _, k := range []string{"ALPACA_API_KEY", "ALPACA_API_SECRET", "APCA_API_KEY_ID",
		"APCA_API_SECRET_KEY", "DATA_DIR", "SIP_SYMBOL", "SIP_MONTHLY_INVESTMENT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/sip/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/sip/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/sip/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/sip/runs.db")
	}

	// -- Server --
	if cfg.Server.Port != 8080 || cfg.Server.GRPCPort != 9090 {
		t.Errorf("Server = %+v, want ports 8080/9090", cfg.Server)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" || cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca = %+v", cfg.Alpaca)
	}

	// -- Logging --
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}

	// -- Gather --
	if len(cfg.Gather.USDaily.Symbols) != 2 || cfg.Gather.USDaily.BatchSize != 100 {
		t.Errorf("Gather.USDaily = %+v", cfg.Gather.USDaily)
	}
	if cfg.Gather.CNDaily.StartDate != "2019-01-01" {
		t.Errorf("Gather.CNDaily.StartDate = %q, want %q", cfg.Gather.CNDaily.StartDate, "2019-01-01")
	}

	// -- Backtest --
	bt := cfg.Backtest
	if bt.Symbol != "sz002958" || bt.Market != "cn" || bt.MonthlyInvestment != 1000 {
		t.Errorf("Backtest = %+v", bt)
	}
	if len(bt.Strategies) != 2 || bt.Strategies[1].Policy != "lowest" {
		t.Errorf("Backtest.Strategies = %+v", bt.Strategies)
	}
	if err := bt.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	start, _ := bt.Start()
	if !start.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v, want 2020-01-01", start)
	}
	end, _ := bt.End()
	if !end.IsZero() {
		t.Errorf("End() = %v, want zero", end)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
backtest:
  symbol: "sz002958"
  monthly_investment: 1000
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("APCA_API_KEY_ID", "")
	t.Setenv("APCA_API_SECRET_KEY", "")
	t.Setenv("SIP_SYMBOL", "SPY")
	t.Setenv("SIP_MONTHLY_INVESTMENT", "250.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Backtest.Symbol != "SPY" || cfg.Backtest.MonthlyInvestment != 250.5 {
		t.Errorf("Backtest = %+v, want SPY / 250.5", cfg.Backtest)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, "backtest:\n  symbol: \"sz002958\"\n  monthly_investment: 500\nserver:\n  port: 9000\n")
	for _, k := range []string{"DATA_DIR", "SQLITE_PATH", "LOG_LEVEL", "SIP_SYMBOL", "SIP_MONTHLY_INVESTMENT"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.DataDir != "data" || cfg.Storage.SQLitePath != "data/sip.db" {
		t.Errorf("Storage = %+v, want defaults", cfg.Storage)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 || cfg.Server.GRPCPort != 0 {
		t.Errorf("Server = %+v, want 127.0.0.1:9000 without gRPC", cfg.Server)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca.Feed = %q, want iex", cfg.Alpaca.Feed)
	}
	if cfg.Backtest.Market != "cn" || cfg.Backtest.MonthlyInvestment != 500 {
		t.Errorf("Backtest = %+v", cfg.Backtest)
	}
}

func TestLoadBadMonthlyOverride(t *testing.T) {
	path := writeConfig(t, "backtest:\n  monthly_investment: 1000\n")
	t.Setenv("SIP_MONTHLY_INVESTMENT", "lots")
	if _, err := Load(path); err == nil {
		t.Error("Load() with non-numeric SIP_MONTHLY_INVESTMENT: expected error")
	}
}

func TestBacktestValidate(t *testing.T) {
	ok := Backtest{Symbol: "sz002958", MonthlyInvestment: 1000}
	tests := []struct {
		name    string
		mutate  func(*Backtest)
		wantErr bool
	}{
		{"valid", func(*Backtest) {}, false},
		{"csv only", func(b *Backtest) { b.Symbol = ""; b.CSVPath = "bars.csv" }, false},
		{"zero monthly", func(b *Backtest) { b.MonthlyInvestment = 0 }, true},
		{"negative monthly", func(b *Backtest) { b.MonthlyInvestment = -5 }, true},
		{"no source", func(b *Backtest) { b.Symbol = "" }, true},
		{"bad start", func(b *Backtest) { b.StartDate = "2020/01/01" }, true},
		{"end before start", func(b *Backtest) { b.StartDate = "2021-01-01"; b.EndDate = "2020-01-01" }, true},
		{"strategy without policy", func(b *Backtest) { b.Strategies = []StrategyConfig{{Label: "x"}} }, true},
		{"duplicate label", func(b *Backtest) {
			b.Strategies = []StrategyConfig{{Label: "x", Policy: "day:1"}, {Label: "x", Policy: "last"}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ok
			tt.mutate(&b)
			err := b.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv("SIP_CONFIG", "")
	if got := Path(); got != "config/sip.yaml" {
		t.Errorf("Path() = %q, want config/sip.yaml", got)
	}
	t.Setenv("SIP_CONFIG", "/etc/sip.yaml")
	if got := Path(); got != "/etc/sip.yaml" {
		t.Errorf("Path() = %q, want /etc/sip.yaml", got)
	}
}
