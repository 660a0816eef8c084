// Package store defines storage interfaces for persisting and retrieving
// daily bar history and completed backtest runs.
package store

import (
	"context"
	"errors"
	"time"

	"sipbacktest/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves daily OHLC bar data.
type BarStore interface {
	// WriteBars persists a batch of bars for market.
	WriteBars(ctx context.Context, market string, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end],
	// ordered by date.
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// Run is one persisted comparison of timing policies over a symbol.
type Run struct {
	ID                int64
	Symbol            string
	Market            string
	Start             time.Time
	End               time.Time
	MonthlyInvestment float64
	CreatedAt         time.Time
	Results           []RunResult
}

// RunResult is one labelled policy result within a Run.
type RunResult struct {
	Label  string
	Rank   int // 1-based; 0 when excluded from the ranking
	Result domain.BacktestResult
}

// RunStore persists and retrieves completed backtest runs.
type RunStore interface {
	// SaveRun inserts run with its results and events, and sets run.ID.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run, its results and their purchase events.
	GetRun(ctx context.Context, id int64) (*Run, error)

	// ListRuns returns the most recent runs for symbol (all symbols when
	// empty), newest first, up to limit. Results are not populated.
	ListRuns(ctx context.Context, symbol string, limit int) ([]Run, error)
}
