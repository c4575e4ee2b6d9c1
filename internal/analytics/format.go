package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	billion  = decimal.New(1, 9)
	million  = decimal.New(1, 6)
	thousand = decimal.New(1, 3)
)

// FormatUSD renders v as $1.23B, $4.56M, $7.89K or $12.34. NaN and Inf
// render as N/A.
func FormatUSD(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	d := decimal.NewFromFloat(v)
	abs := d.Abs()
	switch {
	case abs.GreaterThanOrEqual(billion):
		return "$" + d.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		return "$" + d.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return "$" + d.Div(thousand).StringFixed(2) + "K"
	}
	return "$" + d.StringFixed(2)
}
