package views

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyscreen/polyscreen-backend/internal/models"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rng(min, max float64) *Range {
	return &Range{Min: min, Max: max}
}

func sampleEvents() []models.Event {
	return []models.Event{
		{
			EventID:    "1",
			Title:      "Election 2024",
			Volume:     500_000,
			Volume24hr: 20_000,
			Liquidity:  50_000,
			New:        true,
			Featured:   models.Bool(true),
			Categories: []string{"Politics", "Elections"},
			EndDate:    models.Time(testNow.Add(3 * 24 * time.Hour)),
			Markets: []models.Market{
				{MarketID: "1a", EventID: "1", Question: "Will X win", OutcomeYesPrice: 0.4, OutcomeNoPrice: 0.6},
				{MarketID: "1b", EventID: "1", Question: "Will Y win", OutcomeYesPrice: 0.6, OutcomeNoPrice: 0.4},
			},
		},
		{
			EventID:    "2",
			Title:      "Bitcoin above 100k",
			Volume:     80_000,
			Volume24hr: 90_000,
			Liquidity:  0,
			NegRisk:    models.Bool(false),
			Categories: []string{"Crypto"},
			EndDate:    models.Time(testNow.Add(-time.Hour)),
		},
		{
			EventID:    "3",
			Title:      "Champions League winner",
			Volume:     1_200_000,
			Volume24hr: 5_000,
			Liquidity:  300_000,
			NegRisk:    models.Bool(true),
			Categories: []string{"Sports"},
			Markets: []models.Market{
				{MarketID: "3a", EventID: "3", Question: "Real Madrid", GroupItemTitle: "Madrid"},
			},
		},
	}
}

func ids(events []models.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventID)
	}
	return out
}

func marketIDs(markets []models.Market) []string {
	out := make([]string, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.MarketID)
	}
	return out
}

func TestEndingSoonBoundary(t *testing.T) {
	tests := []struct {
		name string
		end  *time.Time
		want bool
	}{
		{"exactly seven days", models.Time(testNow.Add(EndingSoonWindow)), true},
		{"seven point zero one days", models.Time(testNow.Add(EndingSoonWindow + 864*time.Second)), false},
		{"already ended", models.Time(testNow.Add(-864 * time.Second)), false},
		{"ends now", models.Time(testNow), true},
		{"no end date", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EndingSoon(tt.end, testNow))
		})
	}
}

func TestFilterEvents(t *testing.T) {
	events := sampleEvents()

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"no criteria", Criteria{}, []string{"1", "2", "3"}},
		{"min total volume", Criteria{TotalVolume: rng(100_000, math.Inf(1))}, []string{"1", "3"}},
		{"inclusive bounds", Criteria{TotalVolume: rng(80_000, 500_000)}, []string{"1", "2"}},
		{"24h volume", Criteria{Volume24hr: rng(10_000, 50_000)}, []string{"1"}},
		{"liquidity", Criteria{Liquidity: rng(1, math.Inf(1))}, []string{"1", "3"}},
		{"new only", Criteria{New: true}, []string{"1"}},
		{"featured excludes missing flag", Criteria{Featured: true}, []string{"1"}},
		{"neg risk excludes false and missing", Criteria{NegRisk: true}, []string{"3"}},
		{"ending soon", Criteria{EndingSoon: true}, []string{"1"}},
		{"category is case insensitive", Criteria{Categories: []string{"crypto"}}, []string{"2"}},
		{"any category matches", Criteria{Categories: []string{"Sports", "Elections"}}, []string{"1", "3"}},
		{"market-only ranges ignored", Criteria{YesPrice: rng(0.9, 1), Volume1mo: rng(1e9, 2e9)}, []string{"1", "2", "3"}},
		{"search on title", Criteria{Search: "BITCOIN"}, []string{"2"}},
		{"search on group title", Criteria{Search: "madrid"}, []string{"3"}},
		{"search misses everything", Criteria{Search: "nothing like this"}, []string{}},
		{"conjunction", Criteria{New: true, NegRisk: true}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterEvents(events, tt.criteria, testNow)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterEventsSearchNarrowsMarkets(t *testing.T) {
	events := sampleEvents()

	got := FilterEvents(events, Criteria{Search: "y win"}, testNow)

	require.Len(t, got, 1)
	assert.Equal(t, "Election 2024", got[0].Title)
	require.Len(t, got[0].Markets, 1)
	assert.Equal(t, "Will Y win", got[0].Markets[0].Question)

	// The input keeps both markets.
	assert.Len(t, events[0].Markets, 2)
}

func TestFilterEventsTitleMatchKeepsAllMarkets(t *testing.T) {
	got := FilterEvents(sampleEvents(), Criteria{Search: "election"}, testNow)

	require.Len(t, got, 1)
	assert.Len(t, got[0].Markets, 2)
}

func TestFilterIsSubsetAndIdempotent(t *testing.T) {
	events := sampleEvents()
	criteria := []Criteria{
		{},
		{Search: "win"},
		{Search: "y win", New: true},
		{TotalVolume: rng(50_000, 600_000), EndingSoon: true},
		{NegRisk: true, Liquidity: rng(0, math.Inf(1))},
		{Categories: []string{"Politics"}, Search: "x"},
	}

	inInput := make(map[string]bool)
	for _, e := range events {
		inInput[e.EventID] = true
	}

	for _, c := range criteria {
		once := FilterEvents(events, c, testNow)
		kept := make(map[string]bool)
		for _, e := range once {
			kept[e.EventID] = true
		}
		for _, e := range events {
			assert.Equal(t, MatchEvent(e, c, testNow), kept[e.EventID], "event %s with %+v", e.EventID, c)
		}
		for _, e := range once {
			assert.True(t, inInput[e.EventID], "unknown event %s", e.EventID)
			assert.True(t, MatchEvent(e, c, testNow), "event %s does not satisfy %+v", e.EventID, c)
		}

		twice := FilterEvents(once, c, testNow)
		assert.Equal(t, once, twice)
	}
}

func TestMatchMarket(t *testing.T) {
	m := models.Market{
		MarketID:          "m",
		EventID:           "e",
		Question:          "Will the Fed cut rates?",
		GroupItemTitle:    "March",
		Volume:            150_000,
		Volume24hr:        4_000,
		Liquidity:         10_000,
		OutcomeYesPrice:   0.35,
		OutcomeNoPrice:    0.65,
		Featured:          models.Bool(true),
		EndDate:           models.Time(testNow.Add(24 * time.Hour)),
		OneDayPriceChange: models.Float(0.02),
	}

	tests := []struct {
		name     string
		market   models.Market
		criteria Criteria
		want     bool
	}{
		{"empty criteria", m, Criteria{}, true},
		{"yes price in range", m, Criteria{YesPrice: rng(0.3, 0.4)}, true},
		{"yes price out of range", m, Criteria{YesPrice: rng(0.5, 1)}, false},
		{"no price bound", m, Criteria{NoPrice: rng(0, 0.6)}, false},
		{"missing monthly volume fails bound", m, Criteria{Volume1mo: rng(0, math.Inf(1))}, false},
		{"monthly volume present", withVolume1mo(m, 9_000), Criteria{Volume1mo: rng(5_000, 10_000)}, true},
		{"featured", m, Criteria{Featured: true}, true},
		{"neg risk missing", m, Criteria{NegRisk: true}, false},
		{"ending soon", m, Criteria{EndingSoon: true}, true},
		{"search question", m, Criteria{Search: "FED CUT"}, true},
		{"search group title", m, Criteria{Search: "marc"}, true},
		{"search miss", m, Criteria{Search: "ecb"}, false},
		{"categories ignored", m, Criteria{Categories: []string{"Sports"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchMarket(tt.market, tt.criteria, testNow))
		})
	}
}

func withVolume1mo(m models.Market, v float64) models.Market {
	m.Volume1mo = models.Float(v)
	return m
}

func TestFilterMarketsEmpty(t *testing.T) {
	got := FilterMarkets(nil, Criteria{Search: "x"}, testNow)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
