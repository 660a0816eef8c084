package cn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sipbacktest/internal/domain"
	"sipbacktest/internal/util"
)

// DefaultKlineURL is Tencent's forward-adjusted daily kline endpoint.
const DefaultKlineURL = "https://proxy.finance.qq.com/ifzqgtimg/appstock/app/newfqkline/get"

// maxKlineRows is the most rows the endpoint returns per request; one
// calendar year of A-share sessions fits comfortably.
const maxKlineRows = 640

// ---------------------------------------------------------------------------
// TencentClient — HTTP client for the Tencent kline endpoint.
// ---------------------------------------------------------------------------

// TencentClient fetches forward-adjusted (qfq) daily bars for China A-shares.
type TencentClient struct {
	baseURL string
	http    *http.Client
}

// NewTencentClient creates a client for baseURL (DefaultKlineURL when empty).
func NewTencentClient(baseURL string, hc *http.Client) *TencentClient {
	if baseURL == "" {
		baseURL = DefaultKlineURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &TencentClient{baseURL: baseURL, http: hc}
}

// NormalizeSymbol returns the exchange-prefixed lowercase code the endpoint
// expects: "002958" -> "sz002958", "600000" -> "sh600000". Prefixed input is
// lowercased and returned as is.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if strings.HasPrefix(s, "sh") || strings.HasPrefix(s, "sz") || strings.HasPrefix(s, "bj") {
		if len(s) == 8 {
			return s, nil
		}
		return "", fmt.Errorf("malformed symbol %q", symbol)
	}
	if len(s) != 6 {
		return "", fmt.Errorf("malformed symbol %q", symbol)
	}
	switch s[0] {
	case '6', '9':
		return "sh" + s, nil
	case '4', '8':
		return "bj" + s, nil
	default:
		return "sz" + s, nil
	}
}

// DailyBars returns qfq daily bars for symbol between start and end
// inclusive. Requests cover one calendar year at a time.
func (c *TencentClient) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		chunk, err := c.fetch(ctx, code, from, to)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", code, year, err)
		}
		bars = append(bars, chunk...)
	}
	return bars, nil
}

func (c *TencentClient) fetch(ctx context.Context, code string, from, to time.Time) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("_var", "kline_dayqfq")
	q.Set("param", fmt.Sprintf("%s,day,%s,%s,%d,qfq",
		code, from.Format(time.DateOnly), to.Format(time.DateOnly), maxKlineRows))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, util.Permanent(err)
		}
		return nil, err
	}
	return parseKline(code, body)
}

// klineResponse is the JSON payload after the "kline_dayqfq=" prefix.
type klineResponse struct {
	Code int                                   `json:"code"`
	Msg  string                                `json:"msg"`
	Data map[string]map[string]json.RawMessage `json:"data"`
}

// parseKline decodes a response body. Rows are
// [date, open, close, high, low, lots, ...]; trailing elements such as
// dividend annotations are ignored.
func parseKline(code string, body []byte) ([]domain.Bar, error) {
	if i := bytes.IndexByte(body, '='); i >= 0 && bytes.HasPrefix(bytes.TrimSpace(body), []byte("kline_")) {
		body = body[i+1:]
	}

	var resp klineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding kline response: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("kline error %d: %s", resp.Code, resp.Msg)
	}

	series, ok := resp.Data[code]
	if !ok {
		return nil, nil
	}
	raw, ok := series["qfqday"]
	if !ok {
		raw = series["day"]
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var rows [][]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decoding kline rows: %w", err)
	}

	symbol := strings.ToUpper(code)
	bars := make([]domain.Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: %d fields, want at least 6", i, len(row))
		}
		var f [6]string
		for j := range f {
			s, ok := row[j].(string)
			if !ok {
				return nil, fmt.Errorf("row %d field %d: unexpected %T", i, j, row[j])
			}
			f[j] = s
		}

		ts, err := time.Parse(time.DateOnly, f[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		var v [5]float64
		for j := range v {
			if v[j], err = strconv.ParseFloat(f[j+1], 64); err != nil {
				return nil, fmt.Errorf("row %d field %d: %w", i, j+1, err)
			}
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      v[0],
			Close:     v[1],
			High:      v[2],
			Low:       v[3],
			Amount:    v[4], // traded lots
		})
	}
	return bars, nil
}
