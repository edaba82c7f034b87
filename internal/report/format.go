package report

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatMoney formats an amount with thousands separators and two decimals,
// e.g. -1234.5 -> "-1,234.50".
func FormatMoney(amount float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2f", amount)
}

// FormatPercent formats a percentage with one decimal.
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// FormatSignedPercent formats a percentage with an explicit sign. A nil value
// renders as "n/a".
func FormatSignedPercent(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	if math.Abs(*pct) < 0.05 {
		return "0.0%"
	}
	return fmt.Sprintf("%+.1f%%", *pct)
}

// Status colors a status label by severity.
func Status(label string) string {
	switch label {
	case "over", "over-budget", "high", "urgent", "extreme", "unsustainable":
		return badStyle.Render(label)
	case "warning", "medium", "at-risk", "moderate":
		return warnStyle.Render(label)
	case "good", "on-track", "under-budget", "low", "sustainable", "ok":
		return goodStyle.Render(label)
	default:
		return mutedStyle.Render(label)
	}
}
