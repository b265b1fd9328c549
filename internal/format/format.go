// Package format renders market metrics for display. It is shared by the
// dashboard endpoint, the websocket feed and the terminal screener so that
// every surface prints the same numbers.
package format

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	hundred  = decimal.NewFromInt(100)
)

// amount converts v for display. Non-finite values render as zero.
func amount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// Volume abbreviates a traded amount: $1.2B, $3.4M, $56K, $789.
func Volume(v float64) string {
	d := amount(v)
	switch {
	case d.IsZero():
		return "$0"
	case d.GreaterThanOrEqual(billion):
		return "$" + d.Div(billion).StringFixed(1) + "B"
	case d.GreaterThanOrEqual(million):
		return "$" + d.Div(million).StringFixed(1) + "M"
	case d.GreaterThanOrEqual(thousand):
		return "$" + d.Div(thousand).StringFixed(0) + "K"
	default:
		return "$" + d.String()
	}
}

// Currency renders an amount with two decimals and a magnitude suffix.
func Currency(v float64) string {
	d := amount(v)
	switch {
	case d.GreaterThan(billion):
		return "$" + d.Div(billion).StringFixed(2) + "B"
	case d.GreaterThan(million):
		return "$" + d.Div(million).StringFixed(2) + "M"
	case d.GreaterThan(thousand):
		return "$" + d.Div(thousand).StringFixed(2) + "K"
	default:
		return "$" + d.StringFixed(2)
	}
}

// Percentage renders a signed fraction as a percentage: 0.0123 -> +1.23%.
func Percentage(v float64) string {
	d := amount(v).Mul(hundred)
	sign := ""
	if !d.IsNegative() {
		sign = "+"
	}
	return sign + d.StringFixed(2) + "%"
}

// Price renders an outcome price in cents: 0.456 -> 45.6¢.
func Price(v float64) string {
	return amount(v).Mul(hundred).StringFixed(1) + "¢"
}

// Ratio renders a volume-to-liquidity ratio with two decimals.
func Ratio(v float64) string {
	return amount(v).StringFixed(2) + "x"
}

// Date renders a timestamp as "Jan 2, 2006" in UTC. A nil time is "N/A".
func Date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("Jan 2, 2006")
}

// VLRBucket classifies a volume-to-liquidity ratio.
type VLRBucket string

const (
	VLRNone       VLRBucket = "none"
	VLRLow        VLRBucket = "low"
	VLRModerate   VLRBucket = "moderate"
	VLRHealthy    VLRBucket = "healthy"
	VLROverheated VLRBucket = "overheated"
)

// ClassifyVLR buckets a ratio: 0 none, below 0.1 low, below 3 moderate,
// below 20 healthy, anything higher overheated.
func ClassifyVLR(vlr float64) VLRBucket {
	switch {
	case vlr <= 0:
		return VLRNone
	case vlr < 0.1:
		return VLRLow
	case vlr < 3:
		return VLRModerate
	case vlr < 20:
		return VLRHealthy
	default:
		return VLROverheated
	}
}
