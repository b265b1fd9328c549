package views

import (
	"cmp"
	"slices"

	"github.com/polyscreen/polyscreen-backend/internal/models"
)

const (
	// TopN is the length of every dashboard list.
	TopN = 5

	ControversialMinVolume = 100_000
	ControversialBandLow   = 0.40
	ControversialBandHigh  = 0.60

	ConfidentMinVolume = 200_000
	ConfidentBandLow   = 0.90
	ConfidentBandHigh  = 1.00
)

// Dashboard holds the ranked subsets shown on the overview page.
type Dashboard struct {
	HotMarkets    []models.Event  `json:"hotMarkets"`
	TopLiquidity  []models.Event  `json:"topLiquidity"`
	TopGainers    []models.Market `json:"topGainers"`
	TopLosers     []models.Market `json:"topLosers"`
	Controversial []models.Market `json:"controversial"`
	ConfidentBets []models.Market `json:"confidentBets"`
}

// BuildDashboard runs every extractor over events. Each one flattens and
// filters on its own. A nil or empty collection yields empty lists.
func BuildDashboard(events []models.Event) Dashboard {
	return Dashboard{
		HotMarkets:    HotMarkets(events),
		TopLiquidity:  TopLiquidity(events),
		TopGainers:    TopGainers(FlattenMarkets(events)),
		TopLosers:     TopLosers(FlattenMarkets(events)),
		Controversial: Controversial(FlattenMarkets(events)),
		ConfidentBets: ConfidentBets(FlattenMarkets(events)),
	}
}

// FlattenMarkets concatenates the markets of all events in order.
func FlattenMarkets(events []models.Event) []models.Market {
	n := 0
	for _, e := range events {
		n += len(e.Markets)
	}
	out := make([]models.Market, 0, n)
	for _, e := range events {
		out = append(out, e.Markets...)
	}
	return out
}

func topN[T any](items []T, less func(a, b T) int) []T {
	out := slices.Clone(items)
	if out == nil {
		out = []T{}
	}
	slices.SortStableFunc(out, less)
	if len(out) > TopN {
		out = out[:TopN:TopN]
	}
	return out
}

func filterMarkets(markets []models.Market, keep func(models.Market) bool) []models.Market {
	out := make([]models.Market, 0)
	for _, m := range markets {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func inBand(p, low, high float64) bool {
	return p >= low && p <= high
}

// HotMarkets returns the events with the highest 24h volume.
func HotMarkets(events []models.Event) []models.Event {
	return topN(events, func(a, b models.Event) int {
		return cmp.Compare(b.Volume24hr, a.Volume24hr)
	})
}

// TopLiquidity returns the events with the deepest liquidity.
func TopLiquidity(events []models.Event) []models.Event {
	return topN(events, func(a, b models.Event) int {
		return cmp.Compare(b.Liquidity, a.Liquidity)
	})
}

// TopGainers returns markets with a positive 1-day change, largest first.
// Markets without a recorded change are skipped, not treated as zero.
func TopGainers(markets []models.Market) []models.Market {
	gainers := filterMarkets(markets, func(m models.Market) bool {
		return m.OneDayPriceChange != nil && *m.OneDayPriceChange > 0
	})
	return topN(gainers, func(a, b models.Market) int {
		return cmp.Compare(*b.OneDayPriceChange, *a.OneDayPriceChange)
	})
}

// TopLosers returns markets with a negative 1-day change, most negative first.
func TopLosers(markets []models.Market) []models.Market {
	losers := filterMarkets(markets, func(m models.Market) bool {
		return m.OneDayPriceChange != nil && *m.OneDayPriceChange < 0
	})
	return topN(losers, func(a, b models.Market) int {
		return cmp.Compare(*a.OneDayPriceChange, *b.OneDayPriceChange)
	})
}

// Controversial returns high-volume markets with an outcome priced near 50¢,
// closest to the midpoint first.
func Controversial(markets []models.Market) []models.Market {
	contested := filterMarkets(markets, func(m models.Market) bool {
		return m.Volume > ControversialMinVolume &&
			(inBand(m.OutcomeYesPrice, ControversialBandLow, ControversialBandHigh) ||
				inBand(m.OutcomeNoPrice, ControversialBandLow, ControversialBandHigh))
	})
	return topN(contested, func(a, b models.Market) int {
		return cmp.Compare(DistanceFromMidpoint(a.OutcomeYesPrice), DistanceFromMidpoint(b.OutcomeYesPrice))
	})
}

// ConfidentBets returns very high-volume markets where one outcome trades at
// 90¢ or more, most one-sided first.
func ConfidentBets(markets []models.Market) []models.Market {
	confident := filterMarkets(markets, func(m models.Market) bool {
		return m.Volume > ConfidentMinVolume &&
			(inBand(m.OutcomeYesPrice, ConfidentBandLow, ConfidentBandHigh) ||
				inBand(m.OutcomeNoPrice, ConfidentBandLow, ConfidentBandHigh))
	})
	return topN(confident, func(a, b models.Market) int {
		return cmp.Compare(
			Confidence(b.OutcomeYesPrice, b.OutcomeNoPrice),
			Confidence(a.OutcomeYesPrice, a.OutcomeNoPrice),
		)
	})
}
