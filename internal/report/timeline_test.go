package report

import (
	"strings"
	"testing"
	"time"

	"sipbacktest/internal/domain"
)

func point(y int, m time.Month, d int, value float64) domain.PortfolioPoint {
	return domain.PortfolioPoint{
		Date:           time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Close:          10,
		MarketValue:    value,
		InvestedToDate: 1000,
		Profit:         value - 1000,
	}
}

func TestTimelineRows(t *testing.T) {
	points := []domain.PortfolioPoint{
		point(2024, 1, 2, 1000),
		point(2024, 1, 31, 1010),
		point(2024, 2, 1, 1020),
		point(2024, 2, 29, 1030),
		point(2024, 3, 1, 1040),
	}

	if got := TimelineRows(points, false); len(got) != len(points) {
		t.Errorf("daily rows = %d, want %d", len(got), len(points))
	}

	got := TimelineRows(points, true)
	want := []int{31, 29, 1}
	if len(got) != len(want) {
		t.Fatalf("monthly rows = %d, want %d", len(got), len(want))
	}
	for i, d := range want {
		if got[i].Date.Day() != d {
			t.Errorf("row %d day = %d, want %d", i, got[i].Date.Day(), d)
		}
	}

	if got := TimelineRows(nil, true); len(got) != 0 {
		t.Errorf("empty rows = %d, want 0", len(got))
	}
}

func TestRenderTimeline(t *testing.T) {
	out := RenderTimeline("Day 1", []domain.PortfolioPoint{
		point(2024, 1, 2, 1000),
		point(2024, 2, 1, 1250),
	}, true)
	for _, want := range []string{"Day 1", "2024-01-02", "2024-02-01", "1,250.00", "+250.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderTimeline output missing %q:\n%s", want, out)
		}
	}

	empty := RenderTimeline("Empty", nil, false)
	if !strings.Contains(empty, "no points") {
		t.Errorf("empty timeline = %q", empty)
	}
}
