package views

import (
	"maps"
	"slices"
	"time"

	"github.com/polyscreen/polyscreen-backend/internal/models"
)

// State is the table interaction state: active filters, sort column, current
// page and which event rows are expanded. States are values; Reduce returns
// a new State and never modifies its argument.
type State struct {
	Criteria Criteria
	Sort     SortState
	Page     int
	PageSize int

	expanded map[string]struct{}
}

// NewState returns the initial state: no filters, fetch order, page 1.
func NewState(pageSize int) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return State{Page: 1, PageSize: pageSize}
}

// Expanded reports whether the row for eventID is expanded.
func (s State) Expanded(eventID string) bool {
	_, ok := s.expanded[eventID]
	return ok
}

// Events projects events through the state: filter, sort, then paginate.
func (s State) Events(events []models.Event, now time.Time) Page[models.Event] {
	filtered := FilterEvents(events, s.Criteria, now)
	return Paginate(SortEvents(filtered, s.Sort), s.PageSize, s.Page)
}

// Markets projects markets through the state: filter, sort, then paginate.
func (s State) Markets(markets []models.Market, now time.Time) Page[models.Market] {
	filtered := FilterMarkets(markets, s.Criteria, now)
	return Paginate(SortMarkets(filtered, s.Sort), s.PageSize, s.Page)
}

// Action is a named state transition.
type Action interface {
	apply(State) State
}

// Reduce applies a to s. Any transition that changes which rows are visible
// resets the page to 1.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.apply(s)
}

type (
	// SetCriteria replaces every filter at once.
	SetCriteria struct{ Criteria Criteria }
	// ClearCriteria removes every filter.
	ClearCriteria struct{}
	// SetSearch changes only the search term.
	SetSearch struct{ Term string }
	// ToggleSort is a click on a sortable column header.
	ToggleSort struct{ Key SortKey }
	// SetPage moves the window. Pages below 1 clamp to 1.
	SetPage struct{ Page int }
	// SetPageSize changes the window length.
	SetPageSize struct{ Size int }
	// CollectionReplaced is dispatched whenever a fetch swaps in a new collection.
	CollectionReplaced struct{}
	// ToggleExpanded opens or closes the market list of one event row.
	ToggleExpanded struct{ EventID string }
)

func (a SetCriteria) apply(s State) State {
	s.Criteria = a.Criteria.clone()
	s.Page = 1
	return s
}

func (ClearCriteria) apply(s State) State {
	s.Criteria = Criteria{}
	s.Page = 1
	return s
}

func (a SetSearch) apply(s State) State {
	s.Criteria = s.Criteria.clone()
	s.Criteria.Search = a.Term
	s.Page = 1
	return s
}

func (a ToggleSort) apply(s State) State {
	s.Sort = s.Sort.Toggle(a.Key)
	s.Page = 1
	return s
}

func (a SetPage) apply(s State) State {
	s.Page = max(a.Page, 1)
	return s
}

func (a SetPageSize) apply(s State) State {
	s.PageSize = a.Size
	if s.PageSize <= 0 {
		s.PageSize = DefaultPageSize
	}
	s.Page = 1
	return s
}

func (CollectionReplaced) apply(s State) State {
	s.Page = 1
	return s
}

func (a ToggleExpanded) apply(s State) State {
	expanded := maps.Clone(s.expanded)
	if expanded == nil {
		expanded = make(map[string]struct{})
	}
	if _, ok := expanded[a.EventID]; ok {
		delete(expanded, a.EventID)
	} else {
		expanded[a.EventID] = struct{}{}
	}
	s.expanded = expanded
	return s
}

func (c Criteria) clone() Criteria {
	out := c
	out.TotalVolume = cloneRange(c.TotalVolume)
	out.Volume24hr = cloneRange(c.Volume24hr)
	out.Volume1mo = cloneRange(c.Volume1mo)
	out.Liquidity = cloneRange(c.Liquidity)
	out.YesPrice = cloneRange(c.YesPrice)
	out.NoPrice = cloneRange(c.NoPrice)
	out.Categories = slices.Clone(c.Categories)
	return out
}

func cloneRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
