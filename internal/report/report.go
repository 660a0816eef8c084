// Package report renders strategy comparisons for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sipbacktest/internal/domain"
	"sipbacktest/internal/strategy"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// column widths
const (
	rankW     = 4
	investedW = 14
	valueW    = 14
	profitW   = 14
	rateW     = 10
	annW      = 10
	countW    = 6
	skipW     = 5
)

func signStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return gainStyle
	case v < 0:
		return lossStyle
	default:
		return dimStyle
	}
}

// Render formats a comparison as a ranked table followed by the summary
// lines: best, worst, dispersion and the lump-sum baseline.
func Render(c *strategy.Comparison) string {
	var b strings.Builder

	s := c.Summary
	title := fmt.Sprintf(" %s  %s → %s  (%s trading days)  close %.2f → %.2f ",
		s.Symbol, s.First.Format(time.DateOnly), s.Last.Format(time.DateOnly),
		FormatInt(s.Days), s.FirstClose, s.LastClose)
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	labelW := len("Strategy")
	for _, r := range c.Ranking {
		labelW = max(labelW, len([]rune(r.Label)))
	}
	for _, l := range c.Excluded {
		labelW = max(labelW, len([]rune(l)))
	}

	header := padLeft("#", rankW) + "  " + padRight("Strategy", labelW) +
		padLeft("Invested", investedW) + padLeft("Value", valueW) + padLeft("Profit", profitW) +
		padLeft("Rate", rateW) + padLeft("Annual", annW) + padLeft("Buys", countW) + padLeft("Skip", skipW)
	b.WriteString(colHeaderStyle.Render(header))
	b.WriteByte('\n')
	b.WriteString(dimStyle.Render(strings.Repeat("─", len([]rune(header)))))
	b.WriteByte('\n')

	for i, r := range c.Ranking {
		writeRow(&b, fmt.Sprintf("%d", i+1), r.Label, labelW, r.Result)
	}
	for _, l := range c.Excluded {
		writeRow(&b, "-", l, labelW, c.Results[l])
	}
	b.WriteByte('\n')

	best, ok := c.Best()
	if !ok {
		b.WriteString(dimStyle.Render("No strategy made a purchase."))
		b.WriteByte('\n')
		return b.String()
	}
	worst, _ := c.Worst()

	b.WriteString(sectionStyle.Render("Summary"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  Best:        %s (%s)\n", labelStyle.Render(best.Label), signStyle(best.Result.ProfitRate).Render(FormatPct(best.Result.ProfitRate)))
	fmt.Fprintf(&b, "  Worst:       %s (%s)\n", labelStyle.Render(worst.Label), signStyle(worst.Result.ProfitRate).Render(FormatPct(worst.Result.ProfitRate)))
	fmt.Fprintf(&b, "  Dispersion:  %.2f pp\n", c.Dispersion())
	b.WriteByte('\n')

	ls := c.LumpSum
	b.WriteString(sectionStyle.Render("Lump sum on day one"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  Invested:    %s\n", FormatMoney(ls.Invested))
	fmt.Fprintf(&b, "  Shares:      %s\n", FormatShares(ls.Shares))
	fmt.Fprintf(&b, "  Value:       %s\n", FormatMoney(ls.Value))
	fmt.Fprintf(&b, "  Profit:      %s (%s)\n", signStyle(ls.Profit).Render(FormatSignedMoney(ls.Profit)), signStyle(ls.Rate).Render(FormatPct(ls.Rate)))
	fmt.Fprintf(&b, "  vs best SIP: %s\n", signStyle(best.Result.ProfitRate-ls.Rate).Render(fmt.Sprintf("%+.2f pp", best.Result.ProfitRate-ls.Rate)))
	return b.String()
}

func writeRow(b *strings.Builder, rank, label string, labelW int, r *domain.BacktestResult) {
	b.WriteString(dimStyle.Render(padLeft(rank, rankW)))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render(padRight(label, labelW)))
	b.WriteString(padLeft(FormatMoney(r.TotalInvested), investedW))
	b.WriteString(padLeft(FormatMoney(r.FinalValue), valueW))
	b.WriteString(signStyle(r.TotalProfit).Render(padLeft(FormatSignedMoney(r.TotalProfit), profitW)))
	b.WriteString(signStyle(r.ProfitRate).Render(padLeft(FormatPct(r.ProfitRate), rateW)))
	b.WriteString(signStyle(r.AnnualizedReturn).Render(padLeft(FormatPct(r.AnnualizedReturn), annW)))
	b.WriteString(padLeft(fmt.Sprintf("%d", r.InvestmentCount), countW))
	b.WriteString(padLeft(fmt.Sprintf("%d", r.SkippedMonths), skipW))
	b.WriteByte('\n')
}

// RenderResult formats a single backtest result with its purchase log.
func RenderResult(label string, r *domain.BacktestResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf(" %s (%s) ", label, r.Policy)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  Invested:    %s over %d months (%d skipped)\n", FormatMoney(r.TotalInvested), r.InvestmentCount, r.SkippedMonths)
	fmt.Fprintf(&b, "  Shares:      %s\n", FormatShares(r.TotalShares))
	fmt.Fprintf(&b, "  Value:       %s\n", FormatMoney(r.FinalValue))
	fmt.Fprintf(&b, "  Profit:      %s (%s)\n", signStyle(r.TotalProfit).Render(FormatSignedMoney(r.TotalProfit)), signStyle(r.ProfitRate).Render(FormatPct(r.ProfitRate)))
	fmt.Fprintf(&b, "  Annualized:  %s\n", signStyle(r.AnnualizedReturn).Render(FormatPct(r.AnnualizedReturn)))
	if len(r.Events) == 0 {
		return b.String()
	}
	b.WriteByte('\n')
	b.WriteString(colHeaderStyle.Render(padRight("Date", 12) + padLeft("Price", 10) + padLeft("Shares", 12)))
	b.WriteByte('\n')
	for _, e := range r.Events {
		fmt.Fprintf(&b, "%s%s%s\n", padRight(e.Date.Format(time.DateOnly), 12),
			padLeft(fmt.Sprintf("%.2f", e.Price), 10), padLeft(FormatShares(e.Shares), 12))
	}
	return b.String()
}
