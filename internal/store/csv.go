package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sipbacktest/internal/domain"
)

// csvColumns is the column order written by WriteCSV. ReadCSV locates
// columns by header name, so extra columns and other orders are accepted.
var csvColumns = []string{"date", "open", "high", "low", "close", "amount"}

var csvDateLayouts = []string{time.DateOnly, "2006/01/02", "20060102", time.DateTime}

// LoadCSV reads a daily bar series for symbol from the CSV file at path.
func LoadCSV(path, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses date,open,high,low,close[,amount] rows. The header row is
// required; a leading UTF-8 byte order mark is ignored. Rows are returned in
// file order; ordering is validated by the backtest, not here.
func ReadCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns[:5] {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	amountCol, hasAmount := idx["amount"]
	if !hasAmount {
		amountCol, hasAmount = idx["volume"]
	}

	var bars []domain.Bar
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		field := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		ts, err := parseCSVDate(field("date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		b := domain.Bar{Symbol: symbol, Timestamp: ts}
		for _, p := range []struct {
			col string
			dst *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
		} {
			v, err := strconv.ParseFloat(field(p.col), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parsing %s: %w", row, p.col, err)
			}
			*p.dst = v
		}
		if hasAmount && amountCol < len(rec) && strings.TrimSpace(rec[amountCol]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[amountCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parsing amount: %w", row, err)
			}
			b.Amount = v
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseCSVDate(s string) (time.Time, error) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// WriteCSV writes bars in the column order ReadCSV expects.
func WriteCSV(w io.Writer, bars []domain.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			b.Date().Format(time.DateOnly),
			formatF(b.Open), formatF(b.High), formatF(b.Low), formatF(b.Close),
			formatF(b.Amount),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
