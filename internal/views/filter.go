package views

import (
	"math"
	"strings"
	"time"

	"github.com/polyscreen/polyscreen-backend/internal/models"
)

// EndingSoonWindow is how far ahead an end date may lie for the entity to
// count as ending soon.
const EndingSoonWindow = 7 * 24 * time.Hour

// Range is an inclusive [Min, Max] bound. A nil *Range is unset and admits
// every value.
type Range struct {
	Min float64
	Max float64
}

// OpenRange is the default bound for volume and liquidity: [0, +Inf).
func OpenRange() Range {
	return Range{Min: 0, Max: math.Inf(1)}
}

// PriceRange is the default bound for outcome prices: [0, 1].
func PriceRange() Range {
	return Range{Min: 0, Max: 1}
}

func (r *Range) admits(v float64) bool {
	return r == nil || (v >= r.Min && v <= r.Max)
}

// A missing value fails any active bound.
func (r *Range) admitsNullable(v *float64) bool {
	if r == nil {
		return true
	}
	return v != nil && r.admits(*v)
}

// Criteria is a conjunction of optional constraints. Fields that do not
// exist on an entity kind are ignored for that kind: Volume1mo and the price
// ranges only apply to markets, Categories only to events.
type Criteria struct {
	TotalVolume *Range
	Volume24hr  *Range
	Volume1mo   *Range
	Liquidity   *Range
	YesPrice    *Range
	NoPrice     *Range

	New        bool
	Featured   bool
	EndingSoon bool
	NegRisk    bool

	// Search is matched case-insensitively as a substring.
	Search     string
	Categories []string
}

// EndingSoon reports whether end lies within [now, now+EndingSoonWindow].
func EndingSoon(end *time.Time, now time.Time) bool {
	if end == nil {
		return false
	}
	remaining := end.Sub(now)
	return remaining >= 0 && remaining <= EndingSoonWindow
}

func flagAdmits(active bool, v *bool) bool {
	return !active || (v != nil && *v)
}

func containsFold(text, foldedTerm string) bool {
	return strings.Contains(strings.ToLower(text), foldedTerm)
}

func marketText(m models.Market, foldedTerm string) bool {
	return containsFold(m.Question, foldedTerm) || containsFold(m.GroupItemTitle, foldedTerm)
}

func categoriesAdmit(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}

func eventFieldsMatch(e models.Event, c Criteria, now time.Time) bool {
	return c.TotalVolume.admits(e.Volume) &&
		c.Volume24hr.admits(e.Volume24hr) &&
		c.Liquidity.admits(e.Liquidity) &&
		(!c.New || e.New) &&
		flagAdmits(c.Featured, e.Featured) &&
		flagAdmits(c.NegRisk, e.NegRisk) &&
		(!c.EndingSoon || EndingSoon(e.EndDate, now)) &&
		categoriesAdmit(e.Categories, c.Categories)
}

// MatchEvent reports whether e satisfies c. The search term matches when it
// is found in the event title or in the text of any of its markets.
func MatchEvent(e models.Event, c Criteria, now time.Time) bool {
	if !eventFieldsMatch(e, c, now) {
		return false
	}
	if c.Search == "" {
		return true
	}
	term := strings.ToLower(c.Search)
	if containsFold(e.Title, term) {
		return true
	}
	for _, m := range e.Markets {
		if marketText(m, term) {
			return true
		}
	}
	return false
}

// MatchMarket reports whether m satisfies c. The search term is matched
// against the question and the short group title.
func MatchMarket(m models.Market, c Criteria, now time.Time) bool {
	ok := c.TotalVolume.admits(m.Volume) &&
		c.Volume24hr.admits(m.Volume24hr) &&
		c.Volume1mo.admitsNullable(m.Volume1mo) &&
		c.Liquidity.admits(m.Liquidity) &&
		c.YesPrice.admits(m.OutcomeYesPrice) &&
		c.NoPrice.admits(m.OutcomeNoPrice) &&
		(!c.New || m.New) &&
		flagAdmits(c.Featured, m.Featured) &&
		flagAdmits(c.NegRisk, m.NegRisk) &&
		(!c.EndingSoon || EndingSoon(m.EndDate, now))
	if !ok {
		return false
	}
	return c.Search == "" || marketText(m, strings.ToLower(c.Search))
}

// FilterEvents returns the events that satisfy c, in input order.
//
// When a search term is set and an event's title does not contain it but
// some of its markets do, the event is kept with its markets narrowed to the
// matching ones.
func FilterEvents(events []models.Event, c Criteria, now time.Time) []models.Event {
	out := make([]models.Event, 0, len(events))
	term := strings.ToLower(c.Search)

	for _, e := range events {
		if !MatchEvent(e, c, now) {
			continue
		}
		if term == "" || containsFold(e.Title, term) {
			out = append(out, e)
			continue
		}

		// The event matched through its markets; keep only those.
		var hits []models.Market
		for _, m := range e.Markets {
			if marketText(m, term) {
				hits = append(hits, m)
			}
		}
		out = append(out, e.WithMarkets(hits))
	}
	return out
}

// FilterMarkets returns the markets that satisfy c, in input order.
func FilterMarkets(markets []models.Market, c Criteria, now time.Time) []models.Market {
	out := make([]models.Market, 0, len(markets))
	for _, m := range markets {
		if MatchMarket(m, c, now) {
			out = append(out, m)
		}
	}
	return out
}
