package strategy

import (
	"time"

	"sipbacktest/internal/domain"
)

// MonthBucket is a view of all bars in one calendar month, in date order. Bars
// aliases the caller's series and must not be modified.
type MonthBucket struct {
	Year  int
	Month time.Month
	Bars  []domain.Bar
}

// Len returns the number of trading days in the month.
func (m MonthBucket) Len() int { return len(m.Bars) }

// Partition splits a date-ordered series into one bucket per distinct
// (year, month), in chronological order. Every bar lands in exactly one
// bucket.
func Partition(series []domain.Bar) []MonthBucket {
	var buckets []MonthBucket
	start := 0
	for i := 1; i <= len(series); i++ {
		if i < len(series) && sameMonth(series[i-1], series[i]) {
			continue
		}
		d := series[start].Date()
		buckets = append(buckets, MonthBucket{
			Year:  d.Year(),
			Month: d.Month(),
			Bars:  series[start:i:i],
		})
		start = i
	}
	return buckets
}

func sameMonth(a, b domain.Bar) bool {
	ay, am, _ := a.Date().Date()
	by, bm, _ := b.Date().Date()
	return ay == by && am == bm
}
