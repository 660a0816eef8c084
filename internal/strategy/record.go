package strategy

import (
	"time"

	"sipbacktest/internal/store"
)

// Record converts c into a store.Run for persistence: ranked results first
// with their 1-based rank, then excluded results with rank 0.
func (c *Comparison) Record(market string, start, end time.Time, monthly float64) *store.Run {
	run := &store.Run{
		Symbol:            c.Summary.Symbol,
		Market:            market,
		Start:             start,
		End:               end,
		MonthlyInvestment: monthly,
		Results:           make([]store.RunResult, 0, len(c.Results)),
	}
	for i, r := range c.Ranking {
		run.Results = append(run.Results, store.RunResult{Label: r.Label, Rank: i + 1, Result: *r.Result})
	}
	for _, label := range c.Excluded {
		run.Results = append(run.Results, store.RunResult{Label: label, Result: *c.Results[label]})
	}
	return run
}
