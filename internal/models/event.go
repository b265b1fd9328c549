// Package models defines the prediction-market entities served by polyscreen.
//
// Terminology follows Polymarket:
//   - Event: a topic page that bundles one or more related markets.
//   - Market: a single yes/no question within an event.
//
// Entities are immutable snapshots of a datastore fetch. Views derived from
// them always build new slices and never modify an entity in place.
package models

import (
	"errors"
	"time"
)

// Event is a prediction topic with its nested markets.
type Event struct {
	EventID     string     `json:"eventId"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	EndDate     *time.Time `json:"endDate"`
	Image       string     `json:"image"`
	New         bool       `json:"new"`
	Featured    *bool      `json:"featured,omitempty"`
	NegRisk     *bool      `json:"negRisk,omitempty"`
	Liquidity   float64    `json:"liquidity"`
	Volume      float64    `json:"volume"`
	Volume24hr  float64    `json:"volume24hr"`
	Categories  []string   `json:"categories"`
	FetchDate   time.Time  `json:"fetchDate"`
	Markets     []Market   `json:"markets"`
}

// WithMarkets returns a copy of the event holding the given markets.
func (e Event) WithMarkets(markets []Market) Event {
	e.Markets = markets
	return e
}

// Validate checks the invariants the datastore is expected to uphold.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return errors.New("event ID must not be empty")
	}
	if e.Title == "" {
		return errors.New("event title must not be empty")
	}
	if e.Liquidity < 0 {
		return errors.New("liquidity must not be negative")
	}
	if e.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if e.Volume24hr < 0 {
		return errors.New("volume 24hr must not be negative")
	}
	for i := range e.Markets {
		if e.Markets[i].EventID != e.EventID {
			return errors.New("market belongs to a different event")
		}
		if err := e.Markets[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
