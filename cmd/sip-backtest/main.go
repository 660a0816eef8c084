package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sipbacktest/internal/config"
	"sipbacktest/internal/domain"
	"sipbacktest/internal/report"
	"sipbacktest/internal/store"
	"sipbacktest/internal/strategy"
	"sipbacktest/internal/strategy/builtins"
	"sipbacktest/internal/util"
)

func main() {
	csvPath := flag.String("csv", "", "read bars from this CSV file instead of the parquet store")
	symbol := flag.String("symbol", "", "symbol to backtest (overrides backtest.symbol)")
	monthly := flag.Float64("monthly", 0, "monthly investment (overrides backtest.monthly_investment)")
	timeline := flag.String("timeline", "", "write per-strategy portfolio timelines to this parquet file")
	noSave := flag.Bool("no-save", false, "do not record the run in the SQLite store")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	bt := &cfg.Backtest
	if *csvPath != "" {
		bt.CSVPath = *csvPath
	}
	if *symbol != "" {
		bt.Symbol = *symbol
	}
	if *monthly != 0 {
		bt.MonthlyInvestment = *monthly
	}
	if *timeline != "" {
		bt.TimelinePath = *timeline
	}
	if err := bt.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, !*noSave, logger); err != nil {
		logger.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, save bool, logger *slog.Logger) error {
	bt := cfg.Backtest
	start, _ := bt.Start()
	end, _ := bt.End()

	series, err := loadSeries(ctx, cfg)
	if err != nil {
		return err
	}
	series = strategy.Window(series, start, end)
	logger.Info("loaded series", "symbol", bt.Symbol, "bars", len(series))

	registry, err := registryFor(bt.Strategies)
	if err != nil {
		return err
	}

	cmp, err := strategy.Compare(ctx, series, registry.Entries(), bt.MonthlyInvestment)
	if err != nil {
		return err
	}
	fmt.Print(report.Render(cmp))

	if bt.TimelinePath != "" {
		timelines := make(map[string][]domain.PortfolioPoint, len(cmp.Results))
		for label, res := range cmp.Results {
			timelines[label] = strategy.Timeline(series, res)
		}
		if err := store.WriteTimeline(bt.TimelinePath, timelines); err != nil {
			return fmt.Errorf("writing timeline: %w", err)
		}
		logger.Info("wrote timeline", "path", bt.TimelinePath, "strategies", len(timelines))
	}

	if !save || cfg.Storage.SQLitePath == "" {
		return nil
	}
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer runs.Close()

	rec := cmp.Record(marketOf(bt), start, end, bt.MonthlyInvestment)
	if err := runs.SaveRun(ctx, rec); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	logger.Info("saved run", "id", rec.ID)
	return nil
}

func loadSeries(ctx context.Context, cfg *config.Config) ([]domain.Bar, error) {
	bt := cfg.Backtest
	if bt.CSVPath != "" {
		return store.LoadCSV(bt.CSVPath, bt.Symbol)
	}
	ps := store.NewParquetStore(cfg.Storage.DataDir)
	bars, err := ps.ReadBars(ctx, bt.Symbol, marketOf(bt), time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", bt.Symbol, err)
	}
	return bars, nil
}

func registryFor(strategies []config.StrategyConfig) (*strategy.Registry, error) {
	if len(strategies) == 0 {
		return builtins.DefaultRegistry(), nil
	}
	specs := make([][2]string, len(strategies))
	for i, s := range strategies {
		specs[i] = [2]string{s.Label, s.Policy}
	}
	return builtins.NewRegistry(specs)
}

func marketOf(bt config.Backtest) string {
	if bt.Market == "" {
		return string(domain.MarketCN)
	}
	return bt.Market
}
