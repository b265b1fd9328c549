package models

import (
	"errors"
	"time"
)

// Market is a single binary question. Yes and no prices each lie in [0,1]
// but are not required to sum to 1.
//
// Pointer fields are nullable columns: nil means the datastore had no value.
type Market struct {
	MarketID          string     `json:"marketId"`
	EventID           string     `json:"eventId"`
	Slug              string     `json:"slug"`
	Question          string     `json:"question"`
	GroupItemTitle    string     `json:"groupItemTitle"`
	New               bool       `json:"new"`
	Featured          *bool      `json:"featured,omitempty"`
	NegRisk           *bool      `json:"negRisk,omitempty"`
	EndDate           *time.Time `json:"endDate,omitempty"`
	Liquidity         float64    `json:"liquidity"`
	Volume            float64    `json:"volume"`
	Volume24hr        float64    `json:"volume24hr"`
	Volume1mo         *float64   `json:"volume1mo,omitempty"`
	OutcomeYesPrice   float64    `json:"outcomeYesPrice"`
	OutcomeNoPrice    float64    `json:"outcomeNoPrice"`
	OneDayPriceChange *float64   `json:"oneDayPriceChange"`
	Image             string     `json:"image"`
	FetchDate         time.Time  `json:"fetchDate"`
}

func (m *Market) Validate() error {
	if m.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.EventID == "" {
		return errors.New("market event ID must not be empty")
	}
	if m.OutcomeYesPrice < 0.0 || m.OutcomeYesPrice > 1.0 {
		return errors.New("yes price must be between 0.0 and 1.0")
	}
	if m.OutcomeNoPrice < 0.0 || m.OutcomeNoPrice > 1.0 {
		return errors.New("no price must be between 0.0 and 1.0")
	}
	if m.Liquidity < 0 {
		return errors.New("liquidity must not be negative")
	}
	if m.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if m.Volume24hr < 0 {
		return errors.New("volume 24hr must not be negative")
	}
	if m.Volume1mo != nil && *m.Volume1mo < 0 {
		return errors.New("volume 1mo must not be negative")
	}
	return nil
}

// Float returns a pointer to v, for populating nullable numeric fields.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v, for populating nullable flags.
func Bool(v bool) *bool {
	return &v
}

// Time returns a pointer to t, for populating nullable timestamps.
func Time(t time.Time) *time.Time {
	return &t
}
