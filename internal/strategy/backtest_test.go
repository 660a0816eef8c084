package strategy

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"sipbacktest/internal/domain"
)

// flatMonths returns one bar per month for n consecutive months starting in
// January 2024, all priced at price.
func flatMonths(n int, price float64) []domain.Bar {
	series := make([]domain.Bar, n)
	for i := range series {
		series[i] = bar(2024, time.Month(i+1), 2, price)
	}
	return series
}

func TestRunFlatPrice(t *testing.T) {
	res, err := Run(flatMonths(3, 10), &stubPolicy{name: "first"}, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.InvestmentCount != 3 {
		t.Errorf("InvestmentCount = %d, want 3", res.InvestmentCount)
	}
	if res.TotalInvested != 3000 {
		t.Errorf("TotalInvested = %v, want 3000", res.TotalInvested)
	}
	if res.TotalShares != 300 {
		t.Errorf("TotalShares = %v, want 300", res.TotalShares)
	}
	if res.FinalValue != 3000 {
		t.Errorf("FinalValue = %v, want 3000", res.FinalValue)
	}
	if res.TotalProfit != 0 || res.ProfitRate != 0 {
		t.Errorf("TotalProfit = %v, ProfitRate = %v, want 0, 0", res.TotalProfit, res.ProfitRate)
	}
	if res.Policy != "first" {
		t.Errorf("Policy = %q, want %q", res.Policy, "first")
	}
}

func TestRunInvariants(t *testing.T) {
	series := []domain.Bar{
		bar(2022, 1, 4, 7.31),
		bar(2022, 1, 20, 6.90),
		bar(2022, 2, 7, 5.12),
		bar(2022, 3, 1, 4.87),
		bar(2022, 3, 15, 5.55),
		bar(2022, 7, 1, 3.33),
		bar(2023, 1, 3, 4.01),
	}
	const monthly = 1234.5

	res, err := Run(series, &stubPolicy{name: "first"}, monthly)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, want := res.TotalInvested, float64(res.InvestmentCount)*monthly; got != want {
		t.Errorf("TotalInvested = %v, want count*monthly = %v", got, want)
	}
	var sum float64
	for _, e := range res.Events {
		sum += e.Shares
		if e.Shares <= 0 || e.Price <= 0 {
			t.Errorf("event %+v has non-positive shares or price", e)
		}
	}
	if res.TotalShares != sum {
		t.Errorf("TotalShares = %v, want sum of events %v", res.TotalShares, sum)
	}
	if got, want := res.FinalValue, res.TotalShares*series[len(series)-1].Close; got != want {
		t.Errorf("FinalValue = %v, want %v", got, want)
	}
	if res.InvestmentCount != 5 {
		t.Errorf("InvestmentCount = %d, want 5 (one per month present)", res.InvestmentCount)
	}
}

func TestRunIdempotent(t *testing.T) {
	series := []domain.Bar{bar(2021, 1, 4, 3), bar(2021, 2, 1, 4), bar(2021, 3, 1, 2.5)}
	p := &stubPolicy{name: "first"}

	a, err := Run(series, p, 500)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := Run(series, p, 500)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated runs differ:\n  %+v\n  %+v", a, b)
	}
}

func TestRunAllMonthsDeclined(t *testing.T) {
	res, err := Run(flatMonths(3, 10), &stubPolicy{name: "never", decline: true}, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.InvestmentCount != 0 || res.TotalInvested != 0 {
		t.Errorf("InvestmentCount = %d, TotalInvested = %v, want 0, 0", res.InvestmentCount, res.TotalInvested)
	}
	if res.ProfitRate != 0 || res.AnnualizedReturn != 0 {
		t.Errorf("ProfitRate = %v, AnnualizedReturn = %v, want 0, 0", res.ProfitRate, res.AnnualizedReturn)
	}
	if res.SkippedMonths != 3 {
		t.Errorf("SkippedMonths = %d, want 3", res.SkippedMonths)
	}
}

func TestRunInvalidInput(t *testing.T) {
	p := &stubPolicy{name: "first"}
	tests := []struct {
		name    string
		series  []domain.Bar
		policy  TimingPolicy
		monthly float64
		field   string
	}{
		{"empty series", nil, p, 1000, "series"},
		{"zero investment", flatMonths(1, 10), p, 0, "monthly_investment"},
		{"negative investment", flatMonths(1, 10), p, -5, "monthly_investment"},
		{"NaN investment", flatMonths(1, 10), p, math.NaN(), "monthly_investment"},
		{"nil policy", flatMonths(1, 10), nil, 1000, "policy"},
		{"duplicate date", []domain.Bar{bar(2024, 1, 2, 1), bar(2024, 1, 2, 1)}, p, 1000, "series"},
		{"out of order", []domain.Bar{bar(2024, 2, 1, 1), bar(2024, 1, 2, 1)}, p, 1000, "series"},
		{"zero close", []domain.Bar{bar(2024, 1, 2, 0)}, p, 1000, "series"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.series, tt.policy, tt.monthly)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Run error = %v, want ErrInvalidInput", err)
			}
			var ie *InputError
			if !errors.As(err, &ie) || ie.Field != tt.field {
				t.Errorf("error field = %v, want %q", err, tt.field)
			}
		})
	}
}

func TestAnnualizedReturn(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC) // 366 days

	got := AnnualizedReturn(start, asOf, 1000, 2000)
	want := (math.Pow(2, 1/(366/365.25)) - 1) * 100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("AnnualizedReturn = %v, want %v", got, want)
	}

	zeroCases := []struct {
		name            string
		asOf            time.Time
		invested, value float64
	}{
		{"same day", start, 1000, 2000},
		{"before start", start.AddDate(0, 0, -3), 1000, 2000},
		{"nothing invested", asOf, 0, 2000},
		{"negative invested", asOf, -1, 2000},
		{"worthless", asOf, 1000, 0},
		{"overflowing gain", start.AddDate(0, 0, 1), 1000, 10000},
	}
	for _, tc := range zeroCases {
		if got := AnnualizedReturn(start, tc.asOf, tc.invested, tc.value); got != 0 {
			t.Errorf("%s: AnnualizedReturn = %v, want 0", tc.name, got)
		}
	}
}

func TestAnnualizedReturnIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2020, 1, 1, 23, 0, 0, 0, time.UTC)
	asOf := time.Date(2020, 1, 2, 1, 0, 0, 0, time.UTC)
	if got := AnnualizedReturn(start, asOf, 100, 100); got != 0 {
		t.Errorf("AnnualizedReturn at break-even = %v, want 0", got)
	}
	if got := AnnualizedReturn(start, asOf, 100, 101); got <= 0 {
		t.Errorf("AnnualizedReturn one calendar day apart = %v, want > 0", got)
	}
}

func TestLumpSumBaseline(t *testing.T) {
	series := []domain.Bar{bar(2024, 1, 2, 10), bar(2024, 6, 3, 12), bar(2024, 12, 31, 15)}

	ls, err := LumpSumBaseline(series, 3000)
	if err != nil {
		t.Fatalf("LumpSumBaseline: %v", err)
	}
	if ls.Shares != 300 || ls.Value != 4500 || ls.Profit != 1500 || ls.Rate != 50 {
		t.Errorf("LumpSumBaseline = %+v, want shares 300, value 4500, profit 1500, rate 50", ls)
	}

	zero, err := LumpSumBaseline(series, 0)
	if err != nil {
		t.Fatalf("LumpSumBaseline(0): %v", err)
	}
	if zero.Rate != 0 || zero.Shares != 0 {
		t.Errorf("LumpSumBaseline(0) = %+v, want zero rate and shares", zero)
	}

	if _, err := LumpSumBaseline(nil, 1000); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("LumpSumBaseline(nil) error = %v, want ErrInvalidInput", err)
	}
}
