package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sipbacktest/internal/domain"
	"sipbacktest/internal/metrics"
	"sipbacktest/internal/store"
	"sipbacktest/internal/strategy"
	"sipbacktest/internal/strategy/builtins"
)

// Service runs backtests over stored bars. The HTTP handlers and the gRPC
// service are thin adapters around it.
type Service struct {
	bars    store.BarStore
	runs    store.RunStore // nil disables run history
	bt      *strategy.Backtester
	market  string
	metrics *metrics.Recorder
	log     *slog.Logger
}

// NewService creates a Service reading bars from bars. runs may be nil.
// defaultMarket applies to requests that leave the market empty.
func NewService(bars store.BarStore, runs store.RunStore, defaultMarket string, log *slog.Logger) *Service {
	if defaultMarket == "" {
		defaultMarket = string(domain.MarketCN)
	}
	return &Service{
		bars:    bars,
		runs:    runs,
		bt:      strategy.NewBacktester(bars, builtins.DefaultRegistry()),
		market:  defaultMarket,
		metrics: metrics.New(),
		log:     log.With("component", "service"),
	}
}

// Metrics returns the recorder behind GET /metrics.
func (s *Service) Metrics() *metrics.Recorder { return s.metrics }

// Compare runs the requested strategies (the default set when none are
// given) over the stored series and ranks them. With Save set and a run
// store configured, the comparison is persisted and RunID is returned.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (resp *CompareResponse, err error) {
	defer s.observe("compare", time.Now(), &err)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	market := s.marketOf(req.Market)
	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	entries, err := parseStrategies(req.Strategies)
	if err != nil {
		return nil, err
	}
	series, err := s.loadSeries(ctx, req.Symbol, market, start, end)
	if err != nil {
		return nil, err
	}

	c, err := strategy.Compare(ctx, series, entries, req.MonthlyInvestment)
	if err != nil {
		return nil, err
	}
	for _, r := range c.Results {
		s.metrics.RecordRun("compare", r.InvestmentCount)
	}
	resp = compareResponse(c)

	if req.Save && s.runs != nil {
		run := c.Record(market, start, end, req.MonthlyInvestment)
		if err := s.runs.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("saving run: %w", err)
		}
		resp.RunID = run.ID
	}
	s.log.Info("compare", "symbol", c.Summary.Symbol, "market", market,
		"strategies", len(entries), "best", resp.Best, "runId", resp.RunID)
	return resp, nil
}

// Backtest runs one policy over the stored series.
func (s *Service) Backtest(ctx context.Context, req BacktestRequest) (resp *BacktestResponse, err error) {
	defer s.observe("backtest", time.Now(), &err)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	market := s.marketOf(req.Market)
	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	policy, err := builtins.Parse(req.Policy)
	if err != nil {
		return nil, err
	}
	series, err := s.loadSeries(ctx, req.Symbol, market, start, end)
	if err != nil {
		return nil, err
	}

	res, err := strategy.Run(series, policy, req.MonthlyInvestment)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRun("backtest", res.InvestmentCount)
	resp = &BacktestResponse{Summary: strategy.Summarize(series), Result: res}
	if res.TotalInvested > 0 {
		if resp.LumpSum, err = strategy.LumpSumBaseline(series, res.TotalInvested); err != nil {
			return nil, err
		}
	}
	if req.Timeline {
		resp.Timeline = strategy.Timeline(series, res)
	}
	s.log.Debug("backtest", "symbol", req.Symbol, "policy", res.Policy,
		"investments", res.InvestmentCount, "skipped", res.SkippedMonths)
	return resp, nil
}

// Bars returns the stored bars of symbol within the window.
func (s *Service) Bars(ctx context.Context, symbol, market, startStr, endStr string) (*BarsResponse, error) {
	market = s.marketOf(market)
	start, end, err := parseWindow(startStr, endStr)
	if err != nil {
		return nil, err
	}
	bars, err := s.loadSeries(ctx, symbol, market, start, end)
	if err != nil {
		return nil, err
	}
	resp := &BarsResponse{Symbol: strings.ToUpper(symbol), Market: market, Bars: make([]BarEntry, len(bars))}
	for i, b := range bars {
		resp.Bars[i] = BarEntry{
			Date: b.Date().Format(time.DateOnly),
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close,
			Volume: b.Volume, Amount: b.Amount,
		}
	}
	return resp, nil
}

// ListRuns returns persisted runs, newest first.
func (s *Service) ListRuns(ctx context.Context, symbol string, limit int) (*RunsResponse, error) {
	if s.runs == nil {
		return &RunsResponse{Runs: []RunSummary{}}, nil
	}
	runs, err := s.runs.ListRuns(ctx, strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, err
	}
	resp := &RunsResponse{Runs: make([]RunSummary, len(runs))}
	for i := range runs {
		resp.Runs[i] = runSummary(&runs[i])
	}
	return resp, nil
}

// GetRun returns one persisted run with its results.
func (s *Service) GetRun(ctx context.Context, id int64) (*RunDetail, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run %d: %w", id, store.ErrNotFound)
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	d := runDetail(run)
	return &d, nil
}

// observe records the latency of op and, when *errp is set, its error kind.
func (s *Service) observe(op string, start time.Time, errp *error) {
	s.metrics.RecordLatency(op, start)
	if *errp != nil {
		kind, _ := classify(*errp)
		s.metrics.RecordError(kind.String())
	}
}

func (s *Service) marketOf(m string) string {
	if m == "" {
		return s.market
	}
	return strings.ToLower(m)
}

func (s *Service) loadSeries(ctx context.Context, symbol, market string, start, end time.Time) ([]domain.Bar, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, strategy.NewInputError("symbol", "symbol is required")
	}
	series, err := s.bt.LoadSeries(ctx, symbol, market, start, end)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no bars for %s/%s: %w", market, strings.ToUpper(symbol), store.ErrNotFound)
	}
	return series, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func parseStrategies(specs []StrategySpec) ([]strategy.Entry, error) {
	if len(specs) == 0 {
		return builtins.DefaultRegistry().Entries(), nil
	}
	entries := make([]strategy.Entry, 0, len(specs))
	for _, sp := range specs {
		p, err := builtins.Parse(sp.Policy)
		if err != nil {
			return nil, err
		}
		label := sp.Label
		if label == "" {
			label = p.Name()
		}
		entries = append(entries, strategy.Entry{Label: label, Policy: p})
	}
	return entries, nil
}

func parseWindow(startStr, endStr string) (start, end time.Time, err error) {
	if start, err = parseDate("start", startStr); err != nil {
		return
	}
	if end, err = parseDate("end", endStr); err != nil {
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		err = strategy.NewInputError("end", "end %s is before start %s", endStr, startStr)
	}
	return
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, strategy.NewInputError(field, "want YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func compareResponse(c *strategy.Comparison) *CompareResponse {
	resp := &CompareResponse{
		Summary:    c.Summary,
		Ranking:    make([]RankedResult, 0, len(c.Ranking)),
		Dispersion: c.Dispersion(),
		LumpSum:    c.LumpSum,
	}
	for i, r := range c.Ranking {
		resp.Ranking = append(resp.Ranking, RankedResult{Rank: i + 1, Label: r.Label, Result: r.Result})
	}
	for _, label := range c.Excluded {
		resp.Excluded = append(resp.Excluded, RankedResult{Label: label, Result: c.Results[label]})
	}
	if best, ok := c.Best(); ok {
		resp.Best = best.Label
	}
	if worst, ok := c.Worst(); ok {
		resp.Worst = worst.Label
	}
	return resp
}

// errorKind classifies service errors for transport mapping.
type errorKind int

const (
	kindInternal errorKind = iota
	kindInvalid
	kindNotFound
)

func (k errorKind) String() string {
	switch k {
	case kindInvalid:
		return "invalid"
	case kindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

func classify(err error) (errorKind, string) {
	var ie *strategy.InputError
	switch {
	case errors.As(err, &ie):
		return kindInvalid, ie.Field
	case errors.Is(err, strategy.ErrInvalidInput):
		return kindInvalid, ""
	case errors.Is(err, store.ErrNotFound):
		return kindNotFound, ""
	default:
		return kindInternal, ""
	}
}
