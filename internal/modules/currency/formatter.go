// Package currency renders monetary amounts for the widget paths that do
// server-side formatting.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Formatter renders amounts with a currency symbol, thousands separators
// and two decimal places.
type Formatter struct {
	symbol string
}

// NewFormatter creates a formatter for the given currency symbol.
func NewFormatter(symbol string) *Formatter {
	if symbol == "" {
		symbol = "$"
	}
	return &Formatter{symbol: symbol}
}

// FormatAmount renders a value like 1234567.891 as "$1,234,567.89".
// Decimal arithmetic avoids the float artifacts of naive rounding on
// monetary values.
func (f *Formatter) FormatAmount(value float64) string {
	d := decimal.NewFromFloat(value).Round(2)

	negative := d.IsNegative()
	if negative {
		d = d.Neg()
	}

	fixed := d.StringFixed(2)
	intPart := fixed[:len(fixed)-3]
	fracPart := fixed[len(fixed)-2:]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := f.symbol + strings.Join(groups, ",") + "." + fracPart
	if negative {
		out = "-" + out
	}
	return out
}
