package api

import (
	"sipbacktest/internal/domain"
	"sipbacktest/internal/store"
)

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// StrategySpec names one timing policy, e.g. {"label":"Day 15","policy":"day:15"}.
type StrategySpec struct {
	Label  string `json:"label"`
	Policy string `json:"policy" validate:"required"`
}

// CompareRequest asks for every strategy to be run over one symbol. Dates are
// YYYY-MM-DD; empty bounds are open. An empty Strategies list selects the
// default set.
type CompareRequest struct {
	Symbol            string         `json:"symbol" validate:"required"`
	Market            string         `json:"market" validate:"omitempty,oneof=us cn US CN"`
	Start             string         `json:"start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	End               string         `json:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MonthlyInvestment float64        `json:"monthlyInvestment" validate:"gt=0"`
	Strategies        []StrategySpec `json:"strategies,omitempty" validate:"dive"`
	Save              bool           `json:"save,omitempty"`
}

// BacktestRequest asks for a single policy run.
type BacktestRequest struct {
	Symbol            string  `json:"symbol" validate:"required"`
	Market            string  `json:"market" validate:"omitempty,oneof=us cn US CN"`
	Start             string  `json:"start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	End               string  `json:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MonthlyInvestment float64 `json:"monthlyInvestment" validate:"gt=0"`
	Policy            string  `json:"policy" validate:"required"`
	Timeline          bool    `json:"timeline,omitempty"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// RankedResult is one strategy result with its position in the ranking
// (0 when excluded).
type RankedResult struct {
	Rank   int                    `json:"rank"`
	Label  string                 `json:"label"`
	Result *domain.BacktestResult `json:"result"`
}

// CompareResponse is the ranked outcome of a CompareRequest.
type CompareResponse struct {
	RunID      int64                `json:"runId,omitempty"`
	Summary    domain.SeriesSummary `json:"summary"`
	Ranking    []RankedResult       `json:"ranking"`
	Excluded   []RankedResult       `json:"excluded,omitempty"`
	Best       string               `json:"best,omitempty"`
	Worst      string               `json:"worst,omitempty"`
	Dispersion float64              `json:"dispersion"`
	LumpSum    domain.LumpSum       `json:"lumpSum"`
}

// BacktestResponse is the outcome of a BacktestRequest.
type BacktestResponse struct {
	Summary  domain.SeriesSummary    `json:"summary"`
	Result   *domain.BacktestResult  `json:"result"`
	LumpSum  domain.LumpSum          `json:"lumpSum"`
	Timeline []domain.PortfolioPoint `json:"timeline,omitempty"`
}

// BarsResponse lists stored bars for a symbol.
type BarsResponse struct {
	Symbol string     `json:"symbol"`
	Market string     `json:"market"`
	Bars   []BarEntry `json:"bars"`
}

// BarEntry is the JSON form of a stored daily bar.
type BarEntry struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume,omitempty"`
	Amount float64 `json:"amount,omitempty"`
}

// RunSummary is a persisted run without its results.
type RunSummary struct {
	ID                int64   `json:"id"`
	Symbol            string  `json:"symbol"`
	Market            string  `json:"market"`
	Start             string  `json:"start,omitempty"`
	End               string  `json:"end,omitempty"`
	MonthlyInvestment float64 `json:"monthlyInvestment"`
	CreatedAt         string  `json:"createdAt"`
}

// RunDetail is a persisted run with its results.
type RunDetail struct {
	RunSummary
	Results []RankedResult `json:"results"`
}

// RunsResponse lists persisted runs, newest first.
type RunsResponse struct {
	Runs []RunSummary `json:"runs"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func runSummary(r *store.Run) RunSummary {
	return RunSummary{
		ID:                r.ID,
		Symbol:            r.Symbol,
		Market:            r.Market,
		Start:             formatDate(r.Start),
		End:               formatDate(r.End),
		MonthlyInvestment: r.MonthlyInvestment,
		CreatedAt:         r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func runDetail(r *store.Run) RunDetail {
	d := RunDetail{RunSummary: runSummary(r), Results: make([]RankedResult, 0, len(r.Results))}
	for i := range r.Results {
		rr := &r.Results[i]
		d.Results = append(d.Results, RankedResult{Rank: rr.Rank, Label: rr.Label, Result: &rr.Result})
	}
	return d
}
