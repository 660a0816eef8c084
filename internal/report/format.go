package report

import (
	"fmt"
	"math"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats an amount with comma separators and two decimals.
func FormatMoney(v float64) string {
	neg := v < 0
	cents := int(math.Round(math.Abs(v) * 100))
	s := fmt.Sprintf("%s.%02d", FormatInt(cents/100), cents%100)
	if neg && cents != 0 {
		return "-" + s
	}
	return s
}

// FormatSignedMoney is FormatMoney with an explicit "+" for gains.
func FormatSignedMoney(v float64) string {
	s := FormatMoney(v)
	if !strings.HasPrefix(s, "-") && s != "0.00" {
		return "+" + s
	}
	return s
}

// FormatPct formats a percentage value (already scaled by 100) as "+X.XX%".
func FormatPct(p float64) string {
	if math.Abs(p) < 0.005 {
		return "0.00%"
	}
	return fmt.Sprintf("%+.2f%%", p)
}

// FormatShares formats a share count to two decimals.
func FormatShares(s float64) string {
	return fmt.Sprintf("%.2f", s)
}

func padLeft(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

func padRight(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
