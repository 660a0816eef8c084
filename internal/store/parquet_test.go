package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sipbacktest/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	bp := ps.barPath("sz002958", "cn", 2024)
	want := filepath.Join("/data", "cn", "daily", "SZ002958", "2024.parquet")
	if bp != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Timestamp: day(2024, 1, 2), Open: 185.0, High: 186.5, Low: 184.0, Close: 185.5, Volume: 50000000},
		{Symbol: "AAPL", Timestamp: day(2024, 1, 3), Open: 185.5, High: 187.0, Low: 185.0, Close: 186.0, Volume: 45000000, Amount: 8.4e9},
	}
	if err := ps.WriteBars(ctx, "us", bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, "AAPL", "us", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 {
		t.Errorf("first bar Close = %v, want 185.5", got[0].Close)
	}
	if got[1].Amount != 8.4e9 {
		t.Errorf("second bar Amount = %v, want 8.4e9", got[1].Amount)
	}
	if !got[1].Timestamp.Equal(day(2024, 1, 3)) || got[1].Timestamp.Location() != time.UTC {
		t.Errorf("second bar Timestamp = %v, want 2024-01-03 UTC", got[1].Timestamp)
	}
}

func TestParquetStoreReadBarsOpenBounds(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "SZ002958", Timestamp: day(2022, 12, 30), Open: 10, High: 10, Low: 10, Close: 10},
		{Symbol: "SZ002958", Timestamp: day(2023, 1, 3), Open: 11, High: 11, Low: 11, Close: 11},
		{Symbol: "SZ002958", Timestamp: day(2024, 6, 3), Open: 12, High: 12, Low: 12, Close: 12},
	}
	if err := ps.WriteBars(ctx, "cn", bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	all, err := ps.ReadBars(ctx, "sz002958", "cn", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ReadBars (open) returned %d bars, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if !all[i-1].Timestamp.Before(all[i].Timestamp) {
			t.Errorf("bars not in date order at %d", i)
		}
	}

	from2023, err := ps.ReadBars(ctx, "SZ002958", "cn", day(2023, 1, 1), time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(from2023) != 2 {
		t.Errorf("ReadBars (from 2023) returned %d bars, want 2", len(from2023))
	}

	none, err := ps.ReadBars(ctx, "MISSING", "cn", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars (missing): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ReadBars (missing) returned %d bars, want 0", len(none))
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	first := []domain.Bar{
		{Symbol: "MSFT", Timestamp: day(2024, 3, 1), Open: 400.0, High: 405.0, Low: 399.0, Close: 403.0},
	}
	if err := ps.WriteBars(ctx, "us", first); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same year: merged, and the repeated date is replaced by the newer bar.
	second := []domain.Bar{
		{Symbol: "MSFT", Timestamp: day(2024, 3, 1), Open: 400.0, High: 405.0, Low: 399.0, Close: 404.0},
		{Symbol: "MSFT", Timestamp: day(2024, 3, 4), Open: 403.0, High: 410.0, Low: 402.0, Close: 408.0},
	}
	if err := ps.WriteBars(ctx, "us", second); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	got, err := ps.ReadBars(ctx, "MSFT", "us", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 404.0 {
		t.Errorf("merged bar Close = %v, want 404", got[0].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Timestamp: day(2024, 1, 2), Open: 185.0, High: 186.0, Low: 184.0, Close: 185.5},
		{Symbol: "GOOGL", Timestamp: day(2024, 1, 2), Open: 140.0, High: 141.0, Low: 139.0, Close: 140.5},
	}
	if err := ps.WriteBars(ctx, "us", bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, "us")
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}

	empty, err := ps.ListSymbols(ctx, "cn")
	if err != nil {
		t.Fatalf("ListSymbols (cn): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListSymbols (cn) = %v, want none", empty)
	}
}

func TestTimelineRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "timeline.parquet")

	in := map[string][]domain.PortfolioPoint{
		"Day 1": {
			{Date: day(2024, 1, 2), Close: 10, SharesHeld: 100, InvestedToDate: 1000, MarketValue: 1000},
			{Date: day(2024, 1, 3), Close: 11, SharesHeld: 100, InvestedToDate: 1000, MarketValue: 1100, Profit: 100, AnnualizedReturn: 12.5},
		},
		"Last day": {
			{Date: day(2024, 1, 2), Close: 10},
		},
	}
	if err := WriteTimeline(path, in); err != nil {
		t.Fatalf("WriteTimeline: %v", err)
	}

	out, err := ReadTimeline(path)
	if err != nil {
		t.Fatalf("ReadTimeline: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("ReadTimeline returned %d labels, want 2", len(out))
	}
	got := out["Day 1"]
	if len(got) != 2 {
		t.Fatalf("Day 1 has %d points, want 2", len(got))
	}
	if got[1] != in["Day 1"][1] {
		t.Errorf("point = %+v, want %+v", got[1], in["Day 1"][1])
	}
}

func TestParquetStoreDateIdentity(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	// Alpaca stamps daily bars at midnight New York time.
	ny := func(d int) time.Time { return time.Date(2024, 1, d, 5, 0, 0, 0, time.UTC) }
	if err := ps.WriteBars(ctx, "us", []domain.Bar{
		{Symbol: "SPY", Timestamp: ny(2), Close: 470},
		{Symbol: "SPY", Timestamp: ny(3), Close: 468},
	}); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	// A re-import of Jan 3 stamped at midnight UTC replaces the old bar.
	if err := ps.WriteBars(ctx, "us", []domain.Bar{{Symbol: "SPY", Timestamp: day(2024, 1, 3), Close: 469}}); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, "SPY", "us", day(2024, 1, 2), day(2024, 1, 3))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2 (end date inclusive, one bar per date)", len(got))
	}
	if got[1].Close != 469 {
		t.Errorf("Jan 3 close = %v, want 469 from the later write", got[1].Close)
	}
}

func TestParquetStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	path := ps.barPath("SZ002958", "cn", 2024)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not parquet"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := ps.WriteBars(context.Background(), "cn", []domain.Bar{{Symbol: "SZ002958", Timestamp: day(2024, 1, 2), Close: 10}})
	if err == nil {
		t.Fatal("WriteBars over a corrupt file: expected error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "not parquet" {
		t.Error("corrupt file was overwritten")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the original file", len(entries))
	}
}
