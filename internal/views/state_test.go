package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	s := NewState(0)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, DefaultPageSize, s.PageSize)
	assert.False(t, s.Sort.Active())
}

func TestReducePageResets(t *testing.T) {
	tests := []struct {
		name   string
		action Action
	}{
		{"set criteria", SetCriteria{Criteria: Criteria{New: true}}},
		{"clear criteria", ClearCriteria{}},
		{"search", SetSearch{Term: "trump"}},
		{"sort", ToggleSort{Key: SortLiquidity}},
		{"page size", SetPageSize{Size: 25}},
		{"new collection", CollectionReplaced{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reduce(NewState(10), SetPage{Page: 4})
			require.Equal(t, 4, s.Page)

			next := Reduce(s, tt.action)
			assert.Equal(t, 1, next.Page)
			assert.Equal(t, 4, s.Page, "previous state must not change")
		})
	}
}

func TestReduceSetPageClamps(t *testing.T) {
	s := Reduce(NewState(10), SetPage{Page: -3})
	assert.Equal(t, 1, s.Page)
}

func TestReduceToggleSortCycles(t *testing.T) {
	s := NewState(10)
	for _, want := range []SortOrder{OrderDesc, OrderAsc, OrderNone} {
		s = Reduce(s, ToggleSort{Key: SortVolume24hr})
		assert.Equal(t, want, s.Sort.Order)
	}
	assert.Equal(t, SortState{}, s.Sort)
}

func TestReduceSetCriteriaCopiesInput(t *testing.T) {
	r := &Range{Min: 10, Max: 20}
	cats := []string{"Crypto"}

	s := Reduce(NewState(10), SetCriteria{Criteria: Criteria{Liquidity: r, Categories: cats}})
	r.Min = 999
	cats[0] = "Sports"

	assert.Equal(t, 10.0, s.Criteria.Liquidity.Min)
	assert.Equal(t, []string{"Crypto"}, s.Criteria.Categories)
}

func TestReduceSetSearchKeepsOtherFilters(t *testing.T) {
	s := Reduce(NewState(10), SetCriteria{Criteria: Criteria{New: true}})
	s = Reduce(s, SetSearch{Term: "fed"})

	assert.True(t, s.Criteria.New)
	assert.Equal(t, "fed", s.Criteria.Search)
}

func TestReduceToggleExpanded(t *testing.T) {
	s0 := NewState(10)
	s1 := Reduce(s0, ToggleExpanded{EventID: "e1"})
	s2 := Reduce(s1, ToggleExpanded{EventID: "e2"})
	s3 := Reduce(s2, ToggleExpanded{EventID: "e1"})

	assert.False(t, s0.Expanded("e1"))
	assert.True(t, s1.Expanded("e1"))
	assert.True(t, s2.Expanded("e1"))
	assert.True(t, s2.Expanded("e2"))
	assert.False(t, s3.Expanded("e1"))
	assert.True(t, s3.Expanded("e2"))
}

func TestReduceNilAction(t *testing.T) {
	s := Reduce(NewState(10), SetPage{Page: 2})
	assert.Equal(t, s, Reduce(s, nil))
}

func TestStateEventsProjection(t *testing.T) {
	s := NewState(1)
	s = Reduce(s, ToggleSort{Key: SortVolume})
	s = Reduce(s, SetPage{Page: 2})

	page := s.Events(sampleEvents(), testNow)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "1", page.Items[0].EventID)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.TotalItems)
}

func TestStateMarketsProjection(t *testing.T) {
	s := Reduce(NewState(10), SetSearch{Term: "win"})
	page := s.Markets(FlattenMarkets(sampleEvents()), testNow)
	assert.Equal(t, []string{"1a", "1b"}, marketIDs(page.Items))
}
