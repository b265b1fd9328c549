package models

import (
	"testing"
)

func TestMarketValidate(t *testing.T) {
	tests := []struct {
		name    string
		market  Market
		wantErr bool
	}{
		{
			name: "valid market",
			market: Market{
				MarketID:        "m-1",
				EventID:         "e-1",
				Question:        "Will X happen?",
				OutcomeYesPrice: 0.75,
				OutcomeNoPrice:  0.25,
				Volume:          1000,
			},
			wantErr: false,
		},
		{
			name: "prices need not sum to one",
			market: Market{
				MarketID:        "m-1",
				EventID:         "e-1",
				OutcomeYesPrice: 0.6,
				OutcomeNoPrice:  0.6,
			},
			wantErr: false,
		},
		{
			name:    "empty ID",
			market:  Market{EventID: "e-1", OutcomeYesPrice: 0.5, OutcomeNoPrice: 0.5},
			wantErr: true,
		},
		{
			name:    "missing event",
			market:  Market{MarketID: "m-1", OutcomeYesPrice: 0.5, OutcomeNoPrice: 0.5},
			wantErr: true,
		},
		{
			name:    "yes price above one",
			market:  Market{MarketID: "m-1", EventID: "e-1", OutcomeYesPrice: 1.5},
			wantErr: true,
		},
		{
			name:    "negative no price",
			market:  Market{MarketID: "m-1", EventID: "e-1", OutcomeNoPrice: -0.1},
			wantErr: true,
		},
		{
			name:    "negative liquidity",
			market:  Market{MarketID: "m-1", EventID: "e-1", Liquidity: -1},
			wantErr: true,
		},
		{
			name:    "negative monthly volume",
			market:  Market{MarketID: "m-1", EventID: "e-1", Volume1mo: Float(-5)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.market.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Market.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{
			name:    "valid event without markets",
			event:   Event{EventID: "e-1", Title: "Election 2024"},
			wantErr: false,
		},
		{
			name: "valid event with markets",
			event: Event{
				EventID: "e-1",
				Title:   "Election 2024",
				Markets: []Market{{MarketID: "m-1", EventID: "e-1", OutcomeYesPrice: 0.4, OutcomeNoPrice: 0.6}},
			},
			wantErr: false,
		},
		{
			name:    "empty title",
			event:   Event{EventID: "e-1"},
			wantErr: true,
		},
		{
			name:    "negative volume",
			event:   Event{EventID: "e-1", Title: "x", Volume: -1},
			wantErr: true,
		},
		{
			name: "foreign market",
			event: Event{
				EventID: "e-1",
				Title:   "x",
				Markets: []Market{{MarketID: "m-1", EventID: "e-2"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Event.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithMarketsDoesNotAlias(t *testing.T) {
	original := Event{EventID: "e-1", Markets: []Market{{MarketID: "a"}, {MarketID: "b"}}}
	narrowed := original.WithMarkets(original.Markets[1:])

	if len(original.Markets) != 2 {
		t.Fatalf("original markets changed: %d", len(original.Markets))
	}
	if len(narrowed.Markets) != 1 || narrowed.Markets[0].MarketID != "b" {
		t.Fatalf("unexpected narrowed markets: %+v", narrowed.Markets)
	}
}
