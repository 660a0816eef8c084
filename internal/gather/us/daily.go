package us

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"sipbacktest/internal/domain"
	"sipbacktest/internal/gather"
	"sipbacktest/internal/store"
	"sipbacktest/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface check
// ---------------------------------------------------------------------------

var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// barsClient is the part of *marketdata.Client the gatherer needs.
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// ---------------------------------------------------------------------------
// DailyBarGatherer — split/dividend adjusted daily bars from the Alpaca API.
// ---------------------------------------------------------------------------

// DailyBarGatherer gathers daily bars for a configured list of US symbols
// via the Alpaca market-data API and writes them under the "us" market of a
// ParquetStore. Each run resumes from the last stored bar of every symbol.
type DailyBarGatherer struct {
	client    barsClient
	store     *store.ParquetStore
	symbols   []string
	batchSize int
	feed      string
	startDate string
	limiter   *util.RateLimiter
	backoff   time.Duration
	endDate   func() (time.Time, error)
	log       *slog.Logger
}

// Options configures a DailyBarGatherer.
type Options struct {
	APIKey, APISecret string
	DataURL           string // market-data endpoint; SDK default when empty
	BaseURL           string // trading endpoint for the calendar
	Feed              string // "iex" or "sip"; "iex" when empty
	Symbols           []string
	StartDate         string
	BatchSize         int // symbols per API call (100 when <= 0)
	RateLimitPerMin   int // 200 when <= 0
}

// NewDailyBarGatherer creates a DailyBarGatherer for the given options and
// target store.
func NewDailyBarGatherer(opts Options, s *store.ParquetStore) *DailyBarGatherer {
	copts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		copts.BaseURL = opts.DataURL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 200
	}
	if opts.Feed == "" {
		opts.Feed = "iex"
	}

	return &DailyBarGatherer{
		client:    marketdata.NewClient(copts),
		store:     s,
		symbols:   opts.Symbols,
		batchSize: opts.BatchSize,
		feed:      opts.Feed,
		startDate: opts.StartDate,
		backoff:   2 * time.Second,
		limiter:   util.NewRateLimiter(opts.RateLimitPerMin),
		endDate: func() (time.Time, error) {
			return LatestFinishedTradingDay(opts.APIKey, opts.APISecret, opts.BaseURL)
		},
		log: slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches missing daily bars for the configured symbols up to the latest
// finished trading day. It is resumable and idempotent within a day.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := gather.ParseStart(g.startDate)
	if err != nil {
		return err
	}
	end, err := g.endDate()
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	endStr := end.Format(time.DateOnly)

	progress, err := gather.OpenProgress(filepath.Join(g.store.DataDir, string(domain.MarketUS), "daily"))
	if err != nil {
		return fmt.Errorf("creating progress tracker: %w", err)
	}
	defer progress.Close()

	if progress.IsCompleted(endStr) {
		g.log.Info("already completed", "endDate", endStr)
		return nil
	}
	if err := progress.BeginDay(endStr); err != nil {
		return fmt.Errorf("resetting tracker: %w", err)
	}

	// Group symbols by the date their missing range starts so each API call
	// shares one request window.
	groups := make(map[time.Time][]string)
	for _, raw := range g.symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" || progress.IsTriedEmpty(sym) {
			continue
		}
		existing, err := g.store.ReadBars(ctx, sym, string(domain.MarketUS), time.Time{}, time.Time{})
		if err != nil {
			return fmt.Errorf("reading stored bars for %s: %w", sym, err)
		}
		var last time.Time
		if len(existing) > 0 {
			last = existing[len(existing)-1].Date()
		}
		r, ok := gather.Resume(start, last, end)
		if !ok {
			continue
		}
		groups[r.Start] = append(groups[r.Start], sym)
	}

	starts := make([]time.Time, 0, len(groups))
	for s := range groups {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	var written, failed int
	for _, from := range starts {
		syms := groups[from]
		for i := 0; i < len(syms); i += g.batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch := syms[i:min(i+g.batchSize, len(syms))]
			n, err := g.gatherBatch(ctx, progress, batch, from, end)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				g.log.Error("batch fetch failed", "from", from.Format(time.DateOnly), "symbols", len(batch), "err", err)
				failed++
				continue
			}
			written += n
		}
	}

	if failed > 0 {
		return fmt.Errorf("us-daily: %d batches failed", failed)
	}
	if err := progress.MarkCompleted(endStr); err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}
	g.log.Info("complete", "endDate", endStr, "bars", written)
	return nil
}

// gatherBatch fetches one batch, writes the bars and marks symbols that
// returned nothing. It returns the number of bars written.
func (g *DailyBarGatherer) gatherBatch(ctx context.Context, progress *gather.Progress, batch []string, start, end time.Time) (int, error) {
	var bars []domain.Bar
	err := util.Retry(ctx, 3, g.backoff, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		bars, err = g.fetchMultiBars(ctx, batch, start, end)
		return err
	})
	if err != nil {
		return 0, err
	}

	hit := make(map[string]struct{}, len(batch))
	for _, b := range bars {
		hit[b.Symbol] = struct{}{}
	}
	var empty []string
	for _, sym := range batch {
		if _, ok := hit[sym]; !ok {
			empty = append(empty, sym)
		}
	}

	if len(bars) > 0 {
		if err := g.store.WriteBars(ctx, string(domain.MarketUS), bars); err != nil {
			return 0, fmt.Errorf("writing bars: %w", err)
		}
	}
	if len(empty) > 0 {
		if err := progress.MarkEmpty(empty...); err != nil {
			g.log.Error("marking empty failed", "err", err)
		}
	}
	g.log.Info("batch done", "from", start.Format(time.DateOnly), "hits", len(hit), "empty", len(empty))
	return len(bars), nil
}

// fetchMultiBars fetches adjusted daily bars for multiple symbols in a single
// API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Adjustment("all"),
		Start:      start,
		End:        end.AddDate(0, 0, 1),
		Feed:       marketdata.Feed(g.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:    strings.ToUpper(symbol),
				Timestamp: ab.Timestamp.UTC(),
				Open:      ab.Open,
				High:      ab.High,
				Low:       ab.Low,
				Close:     ab.Close,
				Volume:    int64(ab.Volume),
				Amount:    ab.VWAP * float64(ab.Volume),
			})
		}
	}
	return bars, nil
}
