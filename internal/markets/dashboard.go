package markets

import (
	"time"

	"github.com/polyscreen/polyscreen-backend/internal/format"
	"github.com/polyscreen/polyscreen-backend/internal/models"
	"github.com/polyscreen/polyscreen-backend/internal/views"
)

// EventEntry is a dashboard event with its ranking metric rendered for display.
type EventEntry struct {
	models.Event
	Metric    string           `json:"metric"`
	VLR       string           `json:"vlr"`
	VLRBucket format.VLRBucket `json:"vlrBucket"`
}

// MarketEntry is a dashboard market with its ranking metric rendered for display.
type MarketEntry struct {
	models.Market
	Metric string `json:"metric"`
	Yes    string `json:"yes"`
	No     string `json:"no"`
}

type Dashboard struct {
	// Version is the dataset version the snapshot was built from; zero when
	// built on demand.
	Version     int64     `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`

	HotMarkets    []EventEntry  `json:"hotMarkets"`
	TopLiquidity  []EventEntry  `json:"topLiquidity"`
	TopGainers    []MarketEntry `json:"topGainers"`
	TopLosers     []MarketEntry `json:"topLosers"`
	Controversial []MarketEntry `json:"controversial"`
	ConfidentBets []MarketEntry `json:"confidentBets"`
}

// NewDashboard ranks events and annotates every entry.
func NewDashboard(events []models.Event, now time.Time) Dashboard {
	d := views.BuildDashboard(events)
	return Dashboard{
		GeneratedAt: now.UTC(),
		HotMarkets: eventEntries(d.HotMarkets, func(e models.Event) string {
			return format.Volume(e.Volume24hr)
		}),
		TopLiquidity: eventEntries(d.TopLiquidity, func(e models.Event) string {
			return format.Currency(e.Liquidity)
		}),
		TopGainers:    marketEntries(d.TopGainers, priceChange),
		TopLosers:     marketEntries(d.TopLosers, priceChange),
		Controversial: marketEntries(d.Controversial, func(m models.Market) string {
			return format.Price(views.DistanceFromMidpoint(m.OutcomeYesPrice)) + " from 50¢"
		}),
		ConfidentBets: marketEntries(d.ConfidentBets, func(m models.Market) string {
			return format.Price(views.Confidence(m.OutcomeYesPrice, m.OutcomeNoPrice))
		}),
	}
}

func priceChange(m models.Market) string {
	if m.OneDayPriceChange == nil {
		return "N/A"
	}
	return format.Percentage(*m.OneDayPriceChange)
}

func eventEntries(events []models.Event, metric func(models.Event) string) []EventEntry {
	out := make([]EventEntry, 0, len(events))
	for _, e := range events {
		vlr := views.VolumeToLiquidity(e.Volume, e.Liquidity)
		out = append(out, EventEntry{
			Event:     e,
			Metric:    metric(e),
			VLR:       format.Ratio(vlr),
			VLRBucket: format.ClassifyVLR(vlr),
		})
	}
	return out
}

func marketEntries(markets []models.Market, metric func(models.Market) string) []MarketEntry {
	out := make([]MarketEntry, 0, len(markets))
	for _, m := range markets {
		out = append(out, MarketEntry{
			Market: m,
			Metric: metric(m),
			Yes:    format.Price(m.OutcomeYesPrice),
			No:     format.Price(m.OutcomeNoPrice),
		})
	}
	return out
}
