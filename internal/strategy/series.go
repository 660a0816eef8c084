package strategy

import (
	"time"

	"sipbacktest/internal/domain"
)

// ValidateSeries checks the input contract of a price series: non-empty,
// strictly increasing by date, and positive open and close prices.
func ValidateSeries(series []domain.Bar) error {
	if len(series) == 0 {
		return invalid("series", "empty price series")
	}
	for i, b := range series {
		if b.Open <= 0 || b.Close <= 0 {
			return invalid("series", "bar %d (%s) has non-positive price", i, b.Date().Format(time.DateOnly))
		}
		if i > 0 && !b.Date().After(series[i-1].Date()) {
			return invalid("series", "bar %d (%s) is not after %s", i,
				b.Date().Format(time.DateOnly), series[i-1].Date().Format(time.DateOnly))
		}
	}
	return nil
}

// Window returns the sub-slice of series whose dates fall within
// [start, end]. A zero start or end leaves that side unbounded.
func Window(series []domain.Bar, start, end time.Time) []domain.Bar {
	lo, hi := 0, len(series)
	if !start.IsZero() {
		for lo < hi && series[lo].Date().Before(start) {
			lo++
		}
	}
	if !end.IsZero() {
		for hi > lo && series[hi-1].Date().After(end) {
			hi--
		}
	}
	return series[lo:hi]
}

// Summarize describes the span of a non-empty series.
func Summarize(series []domain.Bar) domain.SeriesSummary {
	if len(series) == 0 {
		return domain.SeriesSummary{}
	}
	first, last := series[0], series[len(series)-1]
	return domain.SeriesSummary{
		Symbol:     first.Symbol,
		First:      first.Date(),
		Last:       last.Date(),
		Days:       len(series),
		FirstClose: first.Close,
		LastClose:  last.Close,
	}
}
