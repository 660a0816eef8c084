package report

import (
	"fmt"
	"strings"
	"time"

	"sipbacktest/internal/domain"
)

// TimelineRows selects the points to display: with monthly set, only the last
// point of each calendar month is kept. The final point is always kept.
func TimelineRows(points []domain.PortfolioPoint, monthly bool) []domain.PortfolioPoint {
	if !monthly || len(points) == 0 {
		return points
	}
	var out []domain.PortfolioPoint
	for i, p := range points {
		if i == len(points)-1 {
			out = append(out, p)
			break
		}
		next := points[i+1].Date
		if next.Year() != p.Date.Year() || next.Month() != p.Date.Month() {
			out = append(out, p)
		}
	}
	return out
}

// RenderTimeline formats one strategy's portfolio timeline as a table.
func RenderTimeline(label string, points []domain.PortfolioPoint, monthly bool) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(label))
	if len(points) == 0 {
		b.WriteString(dimStyle.Render("  (no points)"))
		b.WriteByte('\n')
		return b.String()
	}
	last := points[len(points)-1]
	fmt.Fprintf(&b, "  %s → %s\n\n", points[0].Date.Format(time.DateOnly), last.Date.Format(time.DateOnly))

	header := padRight("Date", 12) + padLeft("Close", 10) + padLeft("Shares", 12) +
		padLeft("Invested", investedW) + padLeft("Value", valueW) + padLeft("Profit", profitW) + padLeft("Annual", annW)
	b.WriteString(colHeaderStyle.Render(header))
	b.WriteByte('\n')
	for _, p := range TimelineRows(points, monthly) {
		b.WriteString(padRight(p.Date.Format(time.DateOnly), 12))
		b.WriteString(padLeft(fmt.Sprintf("%.2f", p.Close), 10))
		b.WriteString(padLeft(FormatShares(p.SharesHeld), 12))
		b.WriteString(padLeft(FormatMoney(p.InvestedToDate), investedW))
		b.WriteString(padLeft(FormatMoney(p.MarketValue), valueW))
		b.WriteString(signStyle(p.Profit).Render(padLeft(FormatSignedMoney(p.Profit), profitW)))
		b.WriteString(signStyle(p.AnnualizedReturn).Render(padLeft(FormatPct(p.AnnualizedReturn), annW)))
		b.WriteByte('\n')
	}
	return b.String()
}
