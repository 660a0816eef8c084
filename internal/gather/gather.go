// Package gather defines the daily bar gatherers that fill the bar store
// consumed by the backtester.
package gather

import (
	"context"
	"fmt"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run fetches bars up to the latest finished session and returns.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Resume returns the range still to fetch for a symbol whose stored history
// ends at last (zero when nothing is stored), starting no earlier than
// start and ending at end. ok is false when the symbol is already current.
func Resume(start, last, end time.Time) (r DateRange, ok bool) {
	from := start
	if !last.IsZero() {
		if next := last.AddDate(0, 0, 1); next.After(from) {
			from = next
		}
	}
	if from.After(end) {
		return DateRange{}, false
	}
	return DateRange{Start: from, End: end}, true
}

// ParseStart parses a YYYY-MM-DD start date from configuration.
func ParseStart(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing start date %q: %w", s, err)
	}
	return t, nil
}
