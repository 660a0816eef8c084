package strategy

import (
	"time"

	"sipbacktest/internal/domain"
)

// Timeline walks series once, applying each purchase of res on its date, and
// returns the running position for every trading day. Purchases are matched
// by calendar date; events dated outside series are never applied.
func Timeline(series []domain.Bar, res *domain.BacktestResult) []domain.PortfolioPoint {
	if len(series) == 0 || res == nil {
		return nil
	}

	points := make([]domain.PortfolioPoint, 0, len(series))
	start := series[0].Date()
	var (
		shares   float64
		invested float64
		next     int
	)
	for _, b := range series {
		day := b.Date()
		for next < len(res.Events) && !eventDate(res.Events[next]).After(day) {
			if eventDate(res.Events[next]).Equal(day) {
				shares += res.Events[next].Shares
				invested += res.MonthlyInvestment
			}
			next++
		}
		value := shares * b.Close
		points = append(points, domain.PortfolioPoint{
			Date:             day,
			Close:            b.Close,
			SharesHeld:       shares,
			InvestedToDate:   invested,
			MarketValue:      value,
			Profit:           value - invested,
			AnnualizedReturn: AnnualizedReturn(start, day, invested, value),
		})
	}
	return points
}

func eventDate(e domain.PurchaseEvent) time.Time {
	return domain.Bar{Timestamp: e.Date}.Date()
}
