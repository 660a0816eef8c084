package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"sipbacktest/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
	Amount    float64 `parquet:"amount"`
}

// TimelineRecord is the Parquet schema for an exported portfolio timeline.
type TimelineRecord struct {
	Label            string  `parquet:"label"`
	Date             int64   `parquet:"date,timestamp(millisecond)"` // Unix ms
	Close            float64 `parquet:"close"`
	SharesHeld       float64 `parquet:"shares_held"`
	InvestedToDate   float64 `parquet:"invested_to_date"`
	MarketValue      float64 `parquet:"market_value"`
	Profit           float64 `parquet:"profit"`
	AnnualizedReturn float64 `parquet:"annualized_return"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bars to Parquet files grouped by symbol and year under
// the given market directory, merging with what is already on disk:
//
//	<DataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, market string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: strings.ToUpper(b.Symbol), year: b.Date().Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:    k.symbol,
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Amount:    b.Amount,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, market, k.year)

		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading existing bars for %s/%d: %w", k.symbol, k.year, err)
		}
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads the bars of symbol whose calendar date lies in [start, end],
// in date order. A zero start or end leaves that side of the range open.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error) {
	years, err := s.listYears(symbol, market)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for _, year := range years {
		if (!start.IsZero() && year < start.Year()) || (!end.IsZero() && year > end.Year()) {
			continue
		}
		records, err := readParquetFile[BarRecord](s.barPath(symbol, market, year))
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s/%d: %w", symbol, year, err)
		}

		for _, r := range records {
			b := r.bar()
			if d := b.Date(); (!start.IsZero() && d.Before(dayOf(start))) || (!end.IsZero() && d.After(dayOf(end))) {
				continue
			}
			bars = append(bars, b)
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data in the given market.
func (s *ParquetStore) ListSymbols(_ context.Context, market string) ([]string, error) {
	dir := filepath.Join(s.DataDir, market, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// listYears returns the sorted years with a bar file for symbol.
func (s *ParquetStore) listYears(symbol, market string) ([]int, error) {
	dir := filepath.Join(s.DataDir, market, "daily", strings.ToUpper(symbol))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var years []int
	for _, e := range entries {
		var y int
		if _, err := fmt.Sscanf(e.Name(), "%d.parquet", &y); err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

// ---------------------------------------------------------------------------
// Timeline export
// ---------------------------------------------------------------------------

// WriteTimeline writes labelled portfolio timelines to a single Parquet file
// at path, one row per (label, date), for the charting side to pick up.
func WriteTimeline(path string, timelines map[string][]domain.PortfolioPoint) error {
	labels := make([]string, 0, len(timelines))
	for label := range timelines {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var records []TimelineRecord
	for _, label := range labels {
		for _, p := range timelines[label] {
			records = append(records, TimelineRecord{
				Label:            label,
				Date:             p.Date.UnixMilli(),
				Close:            p.Close,
				SharesHeld:       p.SharesHeld,
				InvestedToDate:   p.InvestedToDate,
				MarketValue:      p.MarketValue,
				Profit:           p.Profit,
				AnnualizedReturn: p.AnnualizedReturn,
			})
		}
	}
	if err := writeParquetFile(path, records); err != nil {
		return fmt.Errorf("writing timeline %s: %w", path, err)
	}
	return nil
}

// ReadTimeline reads a file written by WriteTimeline back into labelled
// timelines.
func ReadTimeline(path string) (map[string][]domain.PortfolioPoint, error) {
	records, err := readParquetFile[TimelineRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading timeline %s: %w", path, err)
	}
	out := make(map[string][]domain.PortfolioPoint)
	for _, r := range records {
		out[r.Label] = append(out[r.Label], domain.PortfolioPoint{
			Date:             time.UnixMilli(r.Date).UTC(),
			Close:            r.Close,
			SharesHeld:       r.SharesHeld,
			InvestedToDate:   r.InvestedToDate,
			MarketValue:      r.MarketValue,
			Profit:           r.Profit,
			AnnualizedReturn: r.AnnualizedReturn,
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol, market string, year int) string {
	return filepath.Join(s.DataDir, market, "daily", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

// writeParquetFile writes records to a temporary file beside path and renames
// it into place, so readers never observe a partial file.
func writeParquetFile[T any](path string, records []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := parquet.Write(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r BarRecord) bar() domain.Bar {
	return domain.Bar{
		Symbol:    r.Symbol,
		Timestamp: time.UnixMilli(r.Timestamp).UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
		Amount:    r.Amount,
	}
}

func dayOf(t time.Time) time.Time {
	return domain.Bar{Timestamp: t}.Date()
}

// mergeBarRecords keeps one record per (symbol, calendar date), preferring
// incoming records, and returns them in timestamp order. Sources stamp daily
// bars at different times of day, so the date is the identity.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		date   string
	}
	keyOf := func(r BarRecord) key {
		return key{r.Symbol, time.UnixMilli(r.Timestamp).UTC().Format(time.DateOnly)}
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[keyOf(r)] = r
	}
	for _, r := range incoming {
		seen[keyOf(r)] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
