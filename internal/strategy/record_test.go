package strategy

import (
	"context"
	"testing"
	"time"
)

func TestComparisonRecord(t *testing.T) {
	entries := []Entry{
		{Label: "never", Policy: &stubPolicy{name: "never", decline: true}},
		{Label: "dear", Policy: fixedPrice{"dear", 20}},
		{Label: "cheap", Policy: fixedPrice{"cheap", 5}},
	}
	c, err := Compare(context.Background(), compareSeries(), entries, 1000)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := c.Record("cn", start, time.Time{}, 1000)

	if run.Market != "cn" || !run.Start.Equal(start) || run.MonthlyInvestment != 1000 || run.ID != 0 {
		t.Errorf("run header = %+v", run)
	}
	if run.Symbol != c.Summary.Symbol {
		t.Errorf("Symbol = %q, want %q", run.Symbol, c.Summary.Symbol)
	}

	want := []struct {
		label string
		rank  int
	}{{"cheap", 1}, {"dear", 2}, {"never", 0}}
	if len(run.Results) != len(want) {
		t.Fatalf("Results = %d, want %d", len(run.Results), len(want))
	}
	for i, w := range want {
		if run.Results[i].Label != w.label || run.Results[i].Rank != w.rank {
			t.Errorf("Results[%d] = %s/%d, want %s/%d", i, run.Results[i].Label, run.Results[i].Rank, w.label, w.rank)
		}
	}
	if run.Results[0].Result.InvestmentCount != 3 || len(run.Results[0].Result.Events) != 3 {
		t.Errorf("cheap result = %+v", run.Results[0].Result)
	}
}
