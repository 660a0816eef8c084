// Package sipclient is a Go SDK for the sip-server HTTP and gRPC APIs.
package sipclient

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

	"sipbacktest/internal/api"
)

// Request and response types shared with the server.
type (
	StrategySpec     = api.StrategySpec
	CompareRequest   = api.CompareRequest
	CompareResponse  = api.CompareResponse
	BacktestRequest  = api.BacktestRequest
	BacktestResponse = api.BacktestResponse
	BarsResponse     = api.BarsResponse
	RunsResponse     = api.RunsResponse
	RunDetail        = api.RunDetail
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("sip-server: %d: %s (field %s)", e.StatusCode, e.Message, e.Field)
	}
	return fmt.Sprintf("sip-server: %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the sip-server HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new sip-server API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Compare runs a strategy comparison.
func (c *Client) Compare(ctx context.Context, req CompareRequest) (*CompareResponse, error) {
	var resp CompareResponse
	if err := c.do(ctx, http.MethodPost, "/api/compare", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Backtest runs a single policy.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var resp BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/backtest", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBars retrieves stored daily bars for a symbol. Zero bounds are open.
func (c *Client) GetBars(ctx context.Context, symbol, market string, start, end time.Time) (*BarsResponse, error) {
	q := url.Values{}
	if market != "" {
		q.Set("market", market)
	}
	if !start.IsZero() {
		q.Set("start", start.Format(time.DateOnly))
	}
	if !end.IsZero() {
		q.Set("end", end.Format(time.DateOnly))
	}
	var resp BarsResponse
	if err := c.do(ctx, http.MethodGet, "/api/bars/"+url.PathEscape(symbol), q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns lists persisted runs, newest first. An empty symbol lists all.
func (c *Client) ListRuns(ctx context.Context, symbol string, limit int) (*RunsResponse, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp RunsResponse
	if err := c.do(ctx, http.MethodGet, "/api/runs", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun retrieves one persisted run with its results.
func (c *Client) GetRun(ctx context.Context, id int64) (*RunDetail, error) {
	var resp RunDetail
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+strconv.FormatInt(id, 10), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e api.ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error, Field: e.Field}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
