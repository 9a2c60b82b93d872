// Package money holds the pure numeric helpers used by the rollup engine.
// None of these functions fail: degenerate inputs yield zero rates.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencySymbol is prefixed to formatted amounts.
const CurrencySymbol = "₱"

var (
	hundred = decimal.NewFromInt(100)
	printer = message.NewPrinter(language.English)
)

// UtilizationRate returns utilized/allocated as a percentage. Values above
// 100 are over-utilization and are returned as-is.
func UtilizationRate(utilized, allocated decimal.Decimal) float64 {
	return PercentageUsed(utilized, allocated)
}

// Balance returns allocated minus utilized. Negative results are kept.
func Balance(allocated, utilized decimal.Decimal) decimal.Decimal {
	return allocated.Sub(utilized)
}

// PercentageUsed returns used/total*100, or 0 when total is not positive.
func PercentageUsed(used, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	return used.Mul(hundred).DivRound(total, 8).InexactFloat64()
}

// Format renders an amount as pesos with thousands grouping, e.g. "₱1,234.50".
func Format(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Mul(hundred).Round(0)
	if cents.Equal(hundred) {
		whole = whole.Add(decimal.NewFromInt(1))
		cents = decimal.Zero
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, CurrencySymbol,
		printer.Sprint(number.Decimal(whole.IntPart())), cents.IntPart())
}

// FormatRate renders a percentage with two decimals, e.g. "50.00%".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate)
}
