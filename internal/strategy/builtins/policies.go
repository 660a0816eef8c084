// Package builtins provides the timing policies that ship with the backtester
// and a parser for their textual form.
package builtins

import (
	"fmt"

	"sipbacktest/internal/strategy"
)

// Compile-time interface checks.
var (
	_ strategy.TimingPolicy = (*FixedOrdinalDay)(nil)
	_ strategy.TimingPolicy = LastTradingDay{}
	_ strategy.TimingPolicy = LowestClose{}
	_ strategy.TimingPolicy = HighestClose{}
	_ strategy.TimingPolicy = (*CalendarDayOrNextOpen)(nil)
)

// FixedOrdinalDay buys at the close of the n-th trading day of the month,
// counted from 1. Months shorter than n buy on their last trading day.
type FixedOrdinalDay struct {
	n int
}

// NewFixedOrdinalDay creates a FixedOrdinalDay policy. n must be at least 1.
func NewFixedOrdinalDay(n int) (*FixedOrdinalDay, error) {
	if n < 1 {
		return nil, strategy.NewInputError("n", "ordinal trading day must be >= 1, got %d", n)
	}
	return &FixedOrdinalDay{n: n}, nil
}

// Name returns "day-<n>".
func (p *FixedOrdinalDay) Name() string { return fmt.Sprintf("day-%d", p.n) }

// Select picks the n-th bar, clamped to the last.
func (p *FixedOrdinalDay) Select(month strategy.MonthBucket) (strategy.Selection, bool) {
	if month.Len() == 0 {
		return strategy.Selection{}, false
	}
	i := min(p.n, month.Len()) - 1
	b := month.Bars[i]
	return strategy.Selection{Date: b.Date(), Price: b.Close}, true
}

// LastTradingDay buys at the close of the month's final trading day.
type LastTradingDay struct{}

// Name returns "last-day".
func (LastTradingDay) Name() string { return "last-day" }

// Select picks the last bar.
func (LastTradingDay) Select(month strategy.MonthBucket) (strategy.Selection, bool) {
	if month.Len() == 0 {
		return strategy.Selection{}, false
	}
	b := month.Bars[month.Len()-1]
	return strategy.Selection{Date: b.Date(), Price: b.Close}, true
}

// LowestClose buys at the month's lowest close. It needs hindsight and cannot
// be executed in practice; it marks the best case any schedule could reach.
type LowestClose struct{}

// Name returns "lowest-close".
func (LowestClose) Name() string { return "lowest-close" }

// Select picks the first bar with the minimum close.
func (LowestClose) Select(month strategy.MonthBucket) (strategy.Selection, bool) {
	return extremeClose(month, func(c, best float64) bool { return c < best })
}

// HighestClose buys at the month's highest close. Like LowestClose it needs
// hindsight; it marks the worst case.
type HighestClose struct{}

// Name returns "highest-close".
func (HighestClose) Name() string { return "highest-close" }

// Select picks the first bar with the maximum close.
func (HighestClose) Select(month strategy.MonthBucket) (strategy.Selection, bool) {
	return extremeClose(month, func(c, best float64) bool { return c > best })
}

// extremeClose scans in date order and keeps the first bar for which better
// never held against a later one, so ties go to the earliest date.
func extremeClose(month strategy.MonthBucket, better func(c, best float64) bool) (strategy.Selection, bool) {
	if month.Len() == 0 {
		return strategy.Selection{}, false
	}
	pick := month.Bars[0]
	for _, b := range month.Bars[1:] {
		if better(b.Close, pick.Close) {
			pick = b
		}
	}
	return strategy.Selection{Date: pick.Date(), Price: pick.Close}, true
}

// CalendarDayOrNextOpen buys at the open of the trading day falling on the
// target day of the month. When the market is closed that day it buys on the
// next trading day of the month, and when the month has no trading day on or
// after the target it buys on the month's last trading day. It never reaches
// back to an earlier day than the last one.
type CalendarDayOrNextOpen struct {
	day int
}

// NewCalendarDayOrNextOpen creates the policy for a target day in [1, 31].
func NewCalendarDayOrNextOpen(day int) (*CalendarDayOrNextOpen, error) {
	if day < 1 || day > 31 {
		return nil, strategy.NewInputError("target_day", "day of month must be in [1, 31], got %d", day)
	}
	return &CalendarDayOrNextOpen{day: day}, nil
}

// Name returns "calendar-<day>-open".
func (p *CalendarDayOrNextOpen) Name() string { return fmt.Sprintf("calendar-%d-open", p.day) }

// Select picks the bar on or after the target day, else the last bar.
func (p *CalendarDayOrNextOpen) Select(month strategy.MonthBucket) (strategy.Selection, bool) {
	if month.Len() == 0 {
		return strategy.Selection{}, false
	}
	// Bars are in date order, so the first bar with day >= target is the
	// exact match when one exists and the next trading day otherwise.
	for _, b := range month.Bars {
		if b.Date().Day() >= p.day {
			return strategy.Selection{Date: b.Date(), Price: b.Open}, true
		}
	}
	b := month.Bars[month.Len()-1]
	return strategy.Selection{Date: b.Date(), Price: b.Open}, true
}
