package models

import "github.com/shopspring/decimal"

// FormatSigned renders v rounded half away from zero to two places, with an
// explicit sign on positive values: "+20.00", "-3.50", "0.00".
func FormatSigned(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	switch {
	case d.IsPositive():
		return "+" + d.StringFixed(2)
	case d.IsZero():
		return decimal.Zero.StringFixed(2)
	default:
		return d.StringFixed(2)
	}
}
