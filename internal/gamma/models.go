package gamma

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyscreen/polyscreen-backend/internal/models"
)

// Tag is an event label such as "Politics".
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// Event is a gamma API event. Numeric fields arrive as either JSON numbers
// or numeric strings; decimal accepts both.
type Event struct {
	ID          string              `json:"id"`
	Slug        string              `json:"slug"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	EndDate     string              `json:"endDate"`
	Image       string              `json:"image"`
	New         bool                `json:"new"`
	Featured    *bool               `json:"featured"`
	NegRisk     *bool               `json:"negRisk"`
	Active      bool                `json:"active"`
	Closed      bool                `json:"closed"`
	Liquidity   decimal.NullDecimal `json:"liquidity"`
	Volume      decimal.NullDecimal `json:"volume"`
	Volume24hr  decimal.NullDecimal `json:"volume24hr"`
	Tags        []Tag               `json:"tags"`
	Markets     []Market            `json:"markets"`
}

// Market is a gamma API market. Outcomes and OutcomePrices are JSON arrays
// encoded as strings, e.g. "[\"Yes\", \"No\"]" and "[\"0.62\", \"0.38\"]".
type Market struct {
	ID                string              `json:"id"`
	Slug              string              `json:"slug"`
	Question          string              `json:"question"`
	GroupItemTitle    string              `json:"groupItemTitle"`
	EndDate           string              `json:"endDate"`
	Image             string              `json:"image"`
	New               bool                `json:"new"`
	Featured          *bool               `json:"featured"`
	NegRisk           *bool               `json:"negRisk"`
	Liquidity         decimal.NullDecimal `json:"liquidity"`
	Volume            decimal.NullDecimal `json:"volume"`
	Volume24hr        decimal.NullDecimal `json:"volume24hr"`
	Volume1mo         decimal.NullDecimal `json:"volume1mo"`
	Outcomes          string              `json:"outcomes"`
	OutcomePrices     string              `json:"outcomePrices"`
	OneDayPriceChange decimal.NullDecimal `json:"oneDayPriceChange"`
}

// ParseOutcomePrices returns the yes and no prices of a binary market. When
// outcome labels are present the prices are matched by label, otherwise the
// first price is yes and the second no.
func ParseOutcomePrices(outcomes, prices string) (yes, no float64, err error) {
	if strings.TrimSpace(prices) == "" {
		return 0, 0, nil
	}

	var values []decimal.Decimal
	if err := json.Unmarshal([]byte(prices), &values); err != nil {
		return 0, 0, fmt.Errorf("parse outcome prices %q: %w", prices, err)
	}
	if len(values) < 2 {
		return 0, 0, fmt.Errorf("expected two outcome prices, got %d", len(values))
	}

	yesIdx, noIdx := 0, 1
	var labels []string
	if strings.TrimSpace(outcomes) != "" && json.Unmarshal([]byte(outcomes), &labels) == nil && len(labels) == len(values) {
		for i, l := range labels {
			switch strings.ToLower(strings.TrimSpace(l)) {
			case "yes":
				yesIdx = i
			case "no":
				noIdx = i
			}
		}
	}

	yes, _ = values[yesIdx].Float64()
	no, _ = values[noIdx].Float64()
	return yes, no, nil
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func amount(d decimal.NullDecimal) float64 {
	if !d.Valid {
		return 0
	}
	f, _ := d.Decimal.Float64()
	return f
}

func optional(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f, _ := d.Decimal.Float64()
	return &f
}

// ToModel converts the gamma event and its markets into domain types
// stamped with fetched. Markets whose prices cannot be parsed are dropped
// and reported in skipped.
func (e Event) ToModel(fetched time.Time) (event models.Event, skipped []string) {
	event = models.Event{
		EventID:     e.ID,
		Slug:        e.Slug,
		Title:       e.Title,
		Description: e.Description,
		EndDate:     parseTime(e.EndDate),
		Image:       e.Image,
		New:         e.New,
		Featured:    e.Featured,
		NegRisk:     e.NegRisk,
		Liquidity:   amount(e.Liquidity),
		Volume:      amount(e.Volume),
		Volume24hr:  amount(e.Volume24hr),
		Categories:  make([]string, 0, len(e.Tags)),
		FetchDate:   fetched,
		Markets:     make([]models.Market, 0, len(e.Markets)),
	}
	for _, t := range e.Tags {
		if t.Label != "" {
			event.Categories = append(event.Categories, t.Label)
		}
	}

	for _, m := range e.Markets {
		yes, no, err := ParseOutcomePrices(m.Outcomes, m.OutcomePrices)
		if err != nil {
			skipped = append(skipped, m.ID)
			continue
		}
		event.Markets = append(event.Markets, models.Market{
			MarketID:          m.ID,
			EventID:           e.ID,
			Slug:              m.Slug,
			Question:          m.Question,
			GroupItemTitle:    m.GroupItemTitle,
			New:               m.New,
			Featured:          m.Featured,
			NegRisk:           m.NegRisk,
			EndDate:           parseTime(m.EndDate),
			Liquidity:         amount(m.Liquidity),
			Volume:            amount(m.Volume),
			Volume24hr:        amount(m.Volume24hr),
			Volume1mo:         optional(m.Volume1mo),
			OutcomeYesPrice:   yes,
			OutcomeNoPrice:    no,
			OneDayPriceChange: optional(m.OneDayPriceChange),
			Image:             m.Image,
			FetchDate:         fetched,
		})
	}
	return event, skipped
}
