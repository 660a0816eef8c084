// Package domain defines the core value types shared across the backtesting
// platform: daily bars, purchase events, backtest results and portfolio
// timelines.
package domain

import "time"

// Market identifies the exchange group a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is one trading day's OHLC record for a symbol. Amount carries the
// traded amount (or volume) column of the input data; the engine never reads
// it.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Amount    float64
}

// Date returns the bar's calendar date at midnight UTC.
func (b Bar) Date() time.Time {
	y, m, d := b.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PurchaseEvent is one monthly contribution converted into shares.
type PurchaseEvent struct {
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Shares float64   `json:"shares"`
}

// BacktestResult summarises one (series, policy, monthly investment) run.
// ProfitRate and AnnualizedReturn are percentages.
type BacktestResult struct {
	Policy            string          `json:"policy"`
	MonthlyInvestment float64         `json:"monthlyInvestment"`
	TotalInvested     float64         `json:"totalInvested"`
	TotalShares       float64         `json:"totalShares"`
	FinalValue        float64         `json:"finalValue"`
	TotalProfit       float64         `json:"totalProfit"`
	ProfitRate        float64         `json:"profitRate"`
	AnnualizedReturn  float64         `json:"annualizedReturn"`
	InvestmentCount   int             `json:"investmentCount"`
	SkippedMonths     int             `json:"skippedMonths"`
	Events            []PurchaseEvent `json:"events"`
}

// PortfolioPoint is the running position after applying any purchase dated
// on Date.
type PortfolioPoint struct {
	Date             time.Time `json:"date"`
	Close            float64   `json:"close"`
	SharesHeld       float64   `json:"sharesHeld"`
	InvestedToDate   float64   `json:"investedToDate"`
	MarketValue      float64   `json:"marketValue"`
	Profit           float64   `json:"profit"`
	AnnualizedReturn float64   `json:"annualizedReturn"`
}

// LumpSum is the buy-everything-on-day-one baseline. Rate is a percentage.
type LumpSum struct {
	Invested float64 `json:"invested"`
	Shares   float64 `json:"shares"`
	Value    float64 `json:"value"`
	Profit   float64 `json:"profit"`
	Rate     float64 `json:"rate"`
}

// SeriesSummary describes the span of a price series.
type SeriesSummary struct {
	Symbol     string    `json:"symbol"`
	First      time.Time `json:"first"`
	Last       time.Time `json:"last"`
	Days       int       `json:"days"`
	FirstClose float64   `json:"firstClose"`
	LastClose  float64   `json:"lastClose"`
}
