// Package core provides money parsing and formatting utilities.
//
// Amounts are kept as decimal.Decimal internally. The Argentine display form
// ("1.234,56") is produced only at output boundaries by FormatAmount.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount with two decimals, '.' as thousands
// separator and ',' as decimal separator.
//
// Examples:
//
//	FormatAmount(decimal.NewFromFloat(1234.5)) -> "1.234,50"
//	FormatAmount(decimal.Zero)                 -> "0,00"
//	FormatAmount(decimal.NewFromFloat(-5.1))   -> "-5,10"
func FormatAmount(d decimal.Decimal) string {
	d = d.Round(2)
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte('.')
		b.WriteString(intPart[i : i+3])
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}

// FormatOptional renders the amount, or "" when ok is false.
func FormatOptional(d decimal.Decimal, ok bool) string {
	if !ok {
		return ""
	}
	return FormatAmount(d)
}

// ParseSheetAmount parses spreadsheet amounts such as "$1,234.56" or
// "$ 1234". The currency symbol and comma thousands separators are dropped.
func ParseSheetAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseEuropeanAmount parses amounts written with '.' thousands separators
// and ',' decimals: "1.234,56" -> 1234.56. A leading "$", "U$S" or "USD"
// marker is ignored. Plain numbers without a comma keep their dots as
// thousands separators ("1.234" -> 1234).
func ParseEuropeanAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	for _, marker := range []string{"U$S", "USD", "US$", "$"} {
		s = strings.TrimPrefix(s, marker)
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
