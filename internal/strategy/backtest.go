package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"sipbacktest/internal/domain"
	"sipbacktest/internal/store"
)

// daysPerYear converts elapsed calendar days into years for annualisation.
const daysPerYear = 365.25

// Run replays series month by month, buying monthly worth of shares at the
// price chosen by policy, and returns the accumulated position and its
// return metrics. Months the policy declines are skipped and counted in
// SkippedMonths.
func Run(series []domain.Bar, policy TimingPolicy, monthly float64) (*domain.BacktestResult, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, invalid("policy", "no timing policy given")
	}
	if err := checkMonthly(monthly); err != nil {
		return nil, err
	}

	var (
		events      []domain.PurchaseEvent
		totalShares float64
		skipped     int
	)
	for _, month := range Partition(series) {
		if month.Len() == 0 {
			skipped++
			continue
		}
		sel, ok := policy.Select(month)
		if !ok || !(sel.Price > 0) {
			skipped++
			continue
		}
		shares := monthly / sel.Price
		events = append(events, domain.PurchaseEvent{
			Date:   sel.Date,
			Price:  sel.Price,
			Shares: shares,
		})
		totalShares += shares
	}

	first, last := series[0], series[len(series)-1]
	totalInvested := float64(len(events)) * monthly
	finalValue := totalShares * last.Close

	res := &domain.BacktestResult{
		Policy:            policy.Name(),
		MonthlyInvestment: monthly,
		TotalInvested:     totalInvested,
		TotalShares:       totalShares,
		FinalValue:        finalValue,
		TotalProfit:       finalValue - totalInvested,
		InvestmentCount:   len(events),
		SkippedMonths:     skipped,
		Events:            events,
	}
	if totalInvested > 0 {
		res.ProfitRate = res.TotalProfit / totalInvested * 100
	}
	res.AnnualizedReturn = AnnualizedReturn(first.Date(), last.Date(), totalInvested, finalValue)
	return res, nil
}

// AnnualizedReturn approximates a money-weighted annual return, in percent,
// as if the whole of invested had been contributed on start:
//
//	((value / invested) ^ (1 / years) - 1) * 100,  years = days(asOf - start) / 365.25
//
// It is not an IRR. Contributions made later are treated as having been
// exposed for the full period, so the figure understates returns while the
// contribution base is still growing and only becomes meaningful after
// several months. It is 0 when years, invested or value is not positive, and
// when a large gain over a few days overflows float64.
func AnnualizedReturn(start, asOf time.Time, invested, value float64) float64 {
	years := float64(elapsedDays(start, asOf)) / daysPerYear
	if years <= 0 || invested <= 0 || value <= 0 {
		return 0
	}
	r := (math.Pow(value/invested, 1/years) - 1) * 100
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return 0
	}
	return r
}

// checkMonthly rejects a monthly investment that is not a finite positive
// amount.
func checkMonthly(monthly float64) error {
	if !(monthly > 0) || math.IsInf(monthly, 1) {
		return invalid("monthly_investment", "must be a positive amount, got %v", monthly)
	}
	return nil
}

// elapsedDays counts whole calendar days between the dates of a and b.
func elapsedDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// LumpSumBaseline buys invested worth of shares at the first close and
// values them at the last close.
func LumpSumBaseline(series []domain.Bar, invested float64) (domain.LumpSum, error) {
	if err := ValidateSeries(series); err != nil {
		return domain.LumpSum{}, err
	}
	ls := domain.LumpSum{Invested: invested}
	if invested <= 0 {
		return ls, nil
	}
	ls.Shares = invested / series[0].Close
	ls.Value = ls.Shares * series[len(series)-1].Close
	ls.Profit = ls.Value - invested
	ls.Rate = ls.Profit / invested * 100
	return ls, nil
}

// Backtester loads bar history from a BarStore and runs policies looked up
// in a Registry against it.
type Backtester struct {
	store    store.BarStore
	registry *Registry
}

// NewBacktester creates a Backtester that reads bars from the given store and
// looks up policies in the provided registry.
func NewBacktester(barStore store.BarStore, registry *Registry) *Backtester {
	return &Backtester{
		store:    barStore,
		registry: registry,
	}
}

// LoadSeries reads the bars of symbol in market within [start, end]. Zero
// bounds are open.
func (bt *Backtester) LoadSeries(ctx context.Context, symbol, market string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := bt.store.ReadBars(ctx, symbol, market, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s/%s: %w", market, symbol, err)
	}
	return bars, nil
}

// RunNamed executes the policy registered under label over the stored
// history of symbol.
func (bt *Backtester) RunNamed(
	ctx context.Context,
	label string,
	symbol, market string,
	start, end time.Time,
	monthly float64,
) (*domain.BacktestResult, error) {
	policy, ok := bt.registry.Get(label)
	if !ok {
		return nil, invalid("policy", "no policy registered as %q", label)
	}
	series, err := bt.LoadSeries(ctx, symbol, market, start, end)
	if err != nil {
		return nil, err
	}
	return Run(series, policy, monthly)
}

// CompareAll runs every registered policy over the stored history of symbol.
func (bt *Backtester) CompareAll(
	ctx context.Context,
	symbol, market string,
	start, end time.Time,
	monthly float64,
) (*Comparison, error) {
	series, err := bt.LoadSeries(ctx, symbol, market, start, end)
	if err != nil {
		return nil, err
	}
	return Compare(ctx, series, bt.registry.Entries(), monthly)
}
