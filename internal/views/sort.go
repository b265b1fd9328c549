package views

import (
	"cmp"
	"slices"

	"github.com/polyscreen/polyscreen-backend/internal/models"
)

type SortKey string

const (
	SortNone        SortKey = ""
	SortVolume      SortKey = "volume"
	SortVolume24hr  SortKey = "volume24hr"
	SortVolume1mo   SortKey = "volume1mo"
	SortLiquidity   SortKey = "liquidity"
	SortVLR         SortKey = "volumeToLiquidityRatio"
	SortEndDate     SortKey = "endDate"
	SortYesPrice    SortKey = "outcomeYesPrice"
	SortNoPrice     SortKey = "outcomeNoPrice"
	SortPriceChange SortKey = "oneDayPriceChange"
)

// EventSortKeys are the keys that order events.
var EventSortKeys = []SortKey{SortVolume, SortVolume24hr, SortLiquidity, SortVLR, SortEndDate}

// MarketSortKeys are the keys that order markets.
var MarketSortKeys = []SortKey{
	SortVolume, SortVolume24hr, SortVolume1mo, SortLiquidity, SortVLR,
	SortEndDate, SortYesPrice, SortNoPrice, SortPriceChange,
}

type SortOrder string

const (
	OrderNone SortOrder = ""
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// SortState is the single active sort column. The zero value keeps the
// collection in fetch order.
type SortState struct {
	Key   SortKey
	Order SortOrder
}

// Active reports whether a key and a direction are both set.
func (s SortState) Active() bool {
	return s.Key != SortNone && s.Order != OrderNone
}

// Toggle advances the header-click state machine. Selecting the active key
// cycles desc -> asc -> unset. Selecting any other key starts at desc.
func (s SortState) Toggle(key SortKey) SortState {
	if key == SortNone {
		return SortState{}
	}
	if s.Key != key || !s.Active() {
		return SortState{Key: key, Order: OrderDesc}
	}
	if s.Order == OrderDesc {
		return SortState{Key: key, Order: OrderAsc}
	}
	return SortState{}
}

// ParseSortKey resolves name against allowed. The empty name is SortNone.
func ParseSortKey(name string, allowed []SortKey) (SortKey, bool) {
	if name == "" {
		return SortNone, true
	}
	key := SortKey(name)
	return key, slices.Contains(allowed, key)
}

// ParseSortOrder accepts "asc", "desc" or the empty string.
func ParseSortOrder(name string) (SortOrder, bool) {
	switch SortOrder(name) {
	case OrderNone, OrderAsc, OrderDesc:
		return SortOrder(name), true
	default:
		return OrderNone, false
	}
}

// sortValue returns the value of key for an item, or false when the item has
// no value for it. Items without a value always sort after those with one.
type sortValue[T any] func(item T, key SortKey) (float64, bool)

func sortStable[T any](items []T, s SortState, value sortValue[T]) []T {
	out := slices.Clone(items)
	if !s.Active() {
		return out
	}

	slices.SortStableFunc(out, func(a, b T) int {
		av, aok := value(a, s.Key)
		bv, bok := value(b, s.Key)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		if s.Order == OrderDesc {
			return cmp.Compare(bv, av)
		}
		return cmp.Compare(av, bv)
	})
	return out
}

func eventValue(e models.Event, key SortKey) (float64, bool) {
	switch key {
	case SortVolume:
		return e.Volume, true
	case SortVolume24hr:
		return e.Volume24hr, true
	case SortLiquidity:
		return e.Liquidity, true
	case SortVLR:
		return VolumeToLiquidity(e.Volume, e.Liquidity), true
	case SortEndDate:
		if e.EndDate == nil {
			return 0, false
		}
		return float64(e.EndDate.UnixMilli()), true
	default:
		return 0, false
	}
}

func marketValue(m models.Market, key SortKey) (float64, bool) {
	switch key {
	case SortVolume:
		return m.Volume, true
	case SortVolume24hr:
		return m.Volume24hr, true
	case SortVolume1mo:
		if m.Volume1mo == nil {
			return 0, false
		}
		return *m.Volume1mo, true
	case SortLiquidity:
		return m.Liquidity, true
	case SortVLR:
		return VolumeToLiquidity(m.Volume, m.Liquidity), true
	case SortEndDate:
		if m.EndDate == nil {
			return 0, false
		}
		return float64(m.EndDate.UnixMilli()), true
	case SortYesPrice:
		return m.OutcomeYesPrice, true
	case SortNoPrice:
		return m.OutcomeNoPrice, true
	case SortPriceChange:
		if m.OneDayPriceChange == nil {
			return 0, false
		}
		return *m.OneDayPriceChange, true
	default:
		return 0, false
	}
}

// SortEvents returns a stably sorted copy of events.
func SortEvents(events []models.Event, s SortState) []models.Event {
	return sortStable(events, s, eventValue)
}

// SortMarkets returns a stably sorted copy of markets.
func SortMarkets(markets []models.Market, s SortState) []models.Market {
	return sortStable(markets, s, marketValue)
}
