package cn

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"sipbacktest/internal/domain"
	"sipbacktest/internal/gather"
	"sipbacktest/internal/store"
	"sipbacktest/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface check
// ---------------------------------------------------------------------------

var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// shanghai is the exchange timezone used to decide which session finished.
var shanghai = time.FixedZone("CST", 8*3600)

// sessionClose is when A-share daily bars are considered final (15:30 CST).
const sessionCloseHour, sessionCloseMinute = 15, 30

// barSource is the part of TencentClient the gatherer needs.
type barSource interface {
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// ---------------------------------------------------------------------------
// DailyBarGatherer — orchestrates daily bar collection for China A-shares.
// ---------------------------------------------------------------------------

// DailyBarGatherer fetches qfq daily bars for a configured symbol list and
// persists them under the "cn" market of a ParquetStore. Each run resumes
// from the last stored bar of every symbol.
type DailyBarGatherer struct {
	client    barSource
	store     *store.ParquetStore
	symbols   []string
	startDate string
	limiter   *util.RateLimiter
	backoff   time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer with the given client,
// store, symbols and start date. rateLimitPerMin bounds requests to the
// endpoint (60 when <= 0).
func NewDailyBarGatherer(client *TencentClient, s *store.ParquetStore, symbols []string, startDate string, rateLimitPerMin int) *DailyBarGatherer {
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 60
	}
	return &DailyBarGatherer{
		client:    client,
		store:     s,
		symbols:   symbols,
		startDate: startDate,
		backoff:   time.Second,
		limiter:   util.NewRateLimiter(rateLimitPerMin),
		now:       time.Now,
		log:       slog.Default().With("gatherer", "cn-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "cn-daily" }

// Run fetches missing bars for every configured symbol up to the latest
// finished session. A failing symbol is logged and skipped; Run returns an
// error only when the context ends or no symbol could be fetched.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := gather.ParseStart(g.startDate)
	if err != nil {
		return err
	}
	end := latestFinishedSession(g.now())
	endStr := end.Format(time.DateOnly)

	progress, err := gather.OpenProgress(filepath.Join(g.store.DataDir, string(domain.MarketCN), "daily"))
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

	var fetched, failed int
	for _, sym := range g.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, err := NormalizeSymbol(sym)
		if err != nil {
			g.log.Error("skipping symbol", "symbol", sym, "err", err)
			failed++
			continue
		}
		if progress.IsTriedEmpty(code) {
			continue
		}

		n, err := g.gatherSymbol(ctx, code, start, end)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.log.Error("symbol failed", "symbol", code, "err", err)
			failed++
		case n == 0:
			if err := progress.MarkEmpty(code); err != nil {
				g.log.Error("marking empty failed", "err", err)
			}
		default:
			fetched++
		}
	}

	if failed > 0 && fetched == 0 {
		return fmt.Errorf("cn-daily: all %d failing symbols, nothing fetched", failed)
	}
	if failed == 0 {
		if err := progress.MarkCompleted(endStr); err != nil {
			return fmt.Errorf("marking completed: %w", err)
		}
	}
	g.log.Info("complete", "endDate", endStr, "fetched", fetched, "failed", failed)
	return nil
}

// gatherSymbol fetches and stores the missing range of one symbol and
// returns the number of bars written.
func (g *DailyBarGatherer) gatherSymbol(ctx context.Context, code string, start, end time.Time) (int, error) {
	existing, err := g.store.ReadBars(ctx, code, string(domain.MarketCN), time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("reading stored bars: %w", err)
	}
	var last time.Time
	if len(existing) > 0 {
		last = existing[len(existing)-1].Date()
	}
	r, ok := gather.Resume(start, last, end)
	if !ok {
		g.log.Debug("up to date", "symbol", code)
		return len(existing), nil
	}

	var bars []domain.Bar
	err = util.Retry(ctx, 3, g.backoff, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		bars, err = g.client.DailyBars(ctx, code, r.Start, r.End)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return len(existing), nil
	}
	if err := g.store.WriteBars(ctx, string(domain.MarketCN), bars); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	g.log.Info("symbol done", "symbol", code, "from", r.Start.Format(time.DateOnly), "bars", len(bars))
	return len(existing) + len(bars), nil
}

// latestFinishedSession returns the most recent weekday whose session has
// closed as of now. Exchange holidays are not modelled; a holiday simply
// yields no new bars.
func latestFinishedSession(now time.Time) time.Time {
	local := now.In(shanghai)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), sessionCloseHour, sessionCloseMinute, 0, 0, shanghai)
	if local.Before(cutoff) {
		day = day.AddDate(0, 0, -1)
	}
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
