package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sipbacktest/internal/config"
	"sipbacktest/internal/gather/cn"
	"sipbacktest/internal/store"
	"sipbacktest/internal/util"
)

func main() {
	start := flag.String("start", "", "first date to gather (overrides gather.cn_daily.start_date)")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	job := cfg.Gather.CNDaily
	if *start != "" {
		job.StartDate = *start
	}
	symbols := job.Symbols
	if flag.NArg() > 0 {
		symbols = flag.Args()
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols: set gather.cn_daily.symbols or pass them as arguments")
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	client := cn.NewTencentClient(job.BaseURL, nil)
	gatherer := cn.NewDailyBarGatherer(client, pstore, symbols, job.StartDate, job.RateLimitPerMin)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gatherer", "name", gatherer.Name(), "symbols", len(symbols))
	if err := gatherer.Run(ctx); err != nil {
		logger.Error("gatherer error", "error", err)
		os.Exit(1)
	}
}
