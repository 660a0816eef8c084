package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sipbacktest/internal/config"
	"sipbacktest/internal/gather/us"
	"sipbacktest/internal/store"
	"sipbacktest/internal/util"
)

func main() {
	start := flag.String("start", "", "first date to gather (overrides gather.us_daily.start_date)")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	job := cfg.Gather.USDaily
	if *start != "" {
		job.StartDate = *start
	}
	symbols := job.Symbols
	if flag.NArg() > 0 {
		symbols = flag.Args()
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols: set gather.us_daily.symbols or pass them as arguments")
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	gatherer := us.NewDailyBarGatherer(us.Options{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BaseURL:         cfg.Alpaca.BaseURL,
		Feed:            cfg.Alpaca.Feed,
		Symbols:         symbols,
		StartDate:       job.StartDate,
		BatchSize:       job.BatchSize,
		RateLimitPerMin: job.RateLimitPerMin,
	}, pstore)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gatherer", "name", gatherer.Name(), "symbols", len(symbols))
	if err := gatherer.Run(ctx); err != nil {
		logger.Error("gatherer error", "error", err)
		os.Exit(1)
	}
}
