// Package views computes derived projections of event and market collections:
// filter predicates, sorting with a tri-state toggle, pagination windows and
// ranked dashboard subsets.
//
// Every function here is pure. Inputs are never modified and results are
// always freshly allocated slices.
package views

import "math"

// Midpoint is the price at which a binary market is maximally contested.
const Midpoint = 0.5

// VolumeToLiquidity returns volume/liquidity, or 0 when liquidity is zero
// or the ratio is not finite.
func VolumeToLiquidity(volume, liquidity float64) float64 {
	if liquidity <= 0 || math.IsNaN(liquidity) {
		return 0
	}
	r := volume / liquidity
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// DistanceFromMidpoint is abs(yes - 0.5). Smaller means more contested.
func DistanceFromMidpoint(yesPrice float64) float64 {
	return math.Abs(yesPrice - Midpoint)
}

// Confidence is the higher of the two outcome prices.
func Confidence(yesPrice, noPrice float64) float64 {
	return math.Max(yesPrice, noPrice)
}
