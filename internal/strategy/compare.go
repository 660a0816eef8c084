package strategy

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"sipbacktest/internal/domain"
)

// Ranked is one labelled result in a Comparison ranking.
type Ranked struct {
	Label  string
	Result *domain.BacktestResult
}

// Comparison holds the results of several policies run over the same series
// with the same monthly investment.
type Comparison struct {
	Summary domain.SeriesSummary
	Results map[string]*domain.BacktestResult

	// Ranking is sorted by ProfitRate, best first. Ties keep input order.
	// Results with no purchases are left out and listed in Excluded.
	Ranking  []Ranked
	Excluded []string

	// LumpSum invests the best strategy's total on the first day.
	LumpSum domain.LumpSum
}

// Best returns the highest-ranked result.
func (c *Comparison) Best() (Ranked, bool) {
	if len(c.Ranking) == 0 {
		return Ranked{}, false
	}
	return c.Ranking[0], true
}

// Worst returns the lowest-ranked result.
func (c *Comparison) Worst() (Ranked, bool) {
	if len(c.Ranking) == 0 {
		return Ranked{}, false
	}
	return c.Ranking[len(c.Ranking)-1], true
}

// Dispersion is the spread in ProfitRate between the best and worst result.
func (c *Comparison) Dispersion() float64 {
	best, ok := c.Best()
	if !ok {
		return 0
	}
	worst, _ := c.Worst()
	return best.Result.ProfitRate - worst.Result.ProfitRate
}

// Compare runs every entry over series and ranks the results. Runs share no
// state and execute concurrently; the outcome does not depend on scheduling.
func Compare(ctx context.Context, series []domain.Bar, entries []Entry, monthly float64) (*Comparison, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if err := checkMonthly(monthly); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, invalid("strategies", "no strategies to compare")
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Policy == nil {
			return nil, invalid("policy", "strategy %q has no policy", e.Label)
		}
		if _, dup := seen[e.Label]; dup {
			return nil, invalid("label", "duplicate strategy label %q", e.Label)
		}
		seen[e.Label] = struct{}{}
	}

	results := make([]*domain.BacktestResult, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Run(series, e.Policy, monthly)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Comparison{
		Summary: Summarize(series),
		Results: make(map[string]*domain.BacktestResult, len(entries)),
	}
	for i, e := range entries {
		c.Results[e.Label] = results[i]
		if results[i].InvestmentCount == 0 {
			c.Excluded = append(c.Excluded, e.Label)
			continue
		}
		c.Ranking = append(c.Ranking, Ranked{Label: e.Label, Result: results[i]})
	}
	sort.SliceStable(c.Ranking, func(i, j int) bool {
		return c.Ranking[i].Result.ProfitRate > c.Ranking[j].Result.ProfitRate
	})

	if best, ok := c.Best(); ok {
		ls, err := LumpSumBaseline(series, best.Result.TotalInvested)
		if err != nil {
			return nil, err
		}
		c.LumpSum = ls
	}
	return c, nil
}
