package views

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Query string parameter names shared by the API and its clients.
const (
	ParamMinTotalVolume = "minTotalVolume"
	ParamMaxTotalVolume = "maxTotalVolume"
	ParamMinVolume24hr  = "minVolume24hr"
	ParamMaxVolume24hr  = "maxVolume24hr"
	ParamMinVolume1mo   = "minVolume1mo"
	ParamMaxVolume1mo   = "maxVolume1mo"
	ParamMinLiquidity   = "minLiquidity"
	ParamMaxLiquidity   = "maxLiquidity"
	ParamMinYesPrice    = "minOutcomeYesPrice"
	ParamMaxYesPrice    = "maxOutcomeYesPrice"
	ParamMinNoPrice     = "minOutcomeNoPrice"
	ParamMaxNoPrice     = "maxOutcomeNoPrice"
	ParamNew            = "new"
	ParamFeatured       = "featured"
	ParamEndingSoon     = "endingSoon"
	ParamNegRisk        = "negRisk"
	ParamSearch         = "search"
	ParamCategory       = "category"
	ParamSort           = "sort"
	ParamOrder          = "order"
	ParamPage           = "page"
	ParamPageSize       = "pageSize"
)

// ParamError reports a query parameter that could not be parsed.
type ParamError struct {
	Name string
	Err  error
}

func (e *ParamError) Error() string {
	return "invalid parameter " + e.Name
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

// Query is a parsed collection request. Page 0 means the whole filtered
// collection is wanted; PageSize 0 means the server default.
type Query struct {
	Criteria Criteria
	Sort     SortState
	Page     int
	PageSize int
}

// Paginated reports whether a specific page was requested.
func (q Query) Paginated() bool {
	return q.Page > 0
}

// ParseEventQuery parses /api/events parameters. Market-only parameters are
// ignored.
func ParseEventQuery(v url.Values) (Query, error) {
	var q Query
	var err error

	if q.Criteria.TotalVolume, err = parseRange(v, ParamMinTotalVolume, ParamMaxTotalVolume, OpenRange()); err != nil {
		return Query{}, err
	}
	if q.Criteria.Volume24hr, err = parseRange(v, ParamMinVolume24hr, ParamMaxVolume24hr, OpenRange()); err != nil {
		return Query{}, err
	}
	if q.Criteria.Liquidity, err = parseRange(v, ParamMinLiquidity, ParamMaxLiquidity, OpenRange()); err != nil {
		return Query{}, err
	}
	parseFlags(v, &q.Criteria)
	q.Criteria.Categories = splitList(v.Get(ParamCategory))

	if err := parseWindow(v, EventSortKeys, &q); err != nil {
		return Query{}, err
	}
	return q, nil
}

// ParseMarketQuery parses /api/markets parameters.
func ParseMarketQuery(v url.Values) (Query, error) {
	var q Query
	var err error

	ranges := []struct {
		dst      **Range
		min, max string
		def      Range
	}{
		{&q.Criteria.TotalVolume, ParamMinTotalVolume, ParamMaxTotalVolume, OpenRange()},
		{&q.Criteria.Volume24hr, ParamMinVolume24hr, ParamMaxVolume24hr, OpenRange()},
		{&q.Criteria.Volume1mo, ParamMinVolume1mo, ParamMaxVolume1mo, OpenRange()},
		{&q.Criteria.Liquidity, ParamMinLiquidity, ParamMaxLiquidity, OpenRange()},
		{&q.Criteria.YesPrice, ParamMinYesPrice, ParamMaxYesPrice, PriceRange()},
		{&q.Criteria.NoPrice, ParamMinNoPrice, ParamMaxNoPrice, PriceRange()},
	}
	for _, r := range ranges {
		if *r.dst, err = parseRange(v, r.min, r.max, r.def); err != nil {
			return Query{}, err
		}
	}
	parseFlags(v, &q.Criteria)

	if err := parseWindow(v, MarketSortKeys, &q); err != nil {
		return Query{}, err
	}
	return q, nil
}

// parseRange returns nil when neither bound is present. A missing bound takes
// its value from def.
func parseRange(v url.Values, minName, maxName string, def Range) (*Range, error) {
	minRaw, maxRaw := v.Get(minName), v.Get(maxName)
	if minRaw == "" && maxRaw == "" {
		return nil, nil
	}

	r := def
	var err error
	if minRaw != "" {
		if r.Min, err = parseFloat(minName, minRaw); err != nil {
			return nil, err
		}
	}
	if maxRaw != "" {
		if r.Max, err = parseFloat(maxName, maxRaw); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func parseFloat(name, raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &ParamError{Name: name, Err: err}
	}
	if math.IsNaN(f) {
		return 0, &ParamError{Name: name, Err: fmt.Errorf("NaN is not a bound")}
	}
	return f, nil
}

func parseFlags(v url.Values, c *Criteria) {
	c.New = v.Get(ParamNew) == "true"
	c.Featured = v.Get(ParamFeatured) == "true"
	c.EndingSoon = v.Get(ParamEndingSoon) == "true"
	c.NegRisk = v.Get(ParamNegRisk) == "true"
	c.Search = v.Get(ParamSearch)
}

func parseWindow(v url.Values, allowed []SortKey, q *Query) error {
	key, ok := ParseSortKey(v.Get(ParamSort), allowed)
	if !ok {
		return &ParamError{Name: ParamSort, Err: fmt.Errorf("unknown sort key %q", v.Get(ParamSort))}
	}
	order, ok := ParseSortOrder(v.Get(ParamOrder))
	if !ok {
		return &ParamError{Name: ParamOrder, Err: fmt.Errorf("unknown order %q", v.Get(ParamOrder))}
	}
	if key != SortNone && order == OrderNone {
		order = OrderDesc
	}
	if key != SortNone {
		q.Sort = SortState{Key: key, Order: order}
	}

	var err error
	if q.Page, err = parsePositiveInt(v, ParamPage); err != nil {
		return err
	}
	if q.PageSize, err = parsePositiveInt(v, ParamPageSize); err != nil {
		return err
	}
	return nil
}

func parsePositiveInt(v url.Values, name string) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ParamError{Name: name, Err: err}
	}
	if n < 1 {
		return 0, &ParamError{Name: name, Err: fmt.Errorf("must be at least 1, got %d", n)}
	}
	return n, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Values encodes q as query parameters. Unset fields and infinite upper
// bounds are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	c := q.Criteria

	putRange(v, c.TotalVolume, ParamMinTotalVolume, ParamMaxTotalVolume)
	putRange(v, c.Volume24hr, ParamMinVolume24hr, ParamMaxVolume24hr)
	putRange(v, c.Volume1mo, ParamMinVolume1mo, ParamMaxVolume1mo)
	putRange(v, c.Liquidity, ParamMinLiquidity, ParamMaxLiquidity)
	putRange(v, c.YesPrice, ParamMinYesPrice, ParamMaxYesPrice)
	putRange(v, c.NoPrice, ParamMinNoPrice, ParamMaxNoPrice)

	putFlag(v, ParamNew, c.New)
	putFlag(v, ParamFeatured, c.Featured)
	putFlag(v, ParamEndingSoon, c.EndingSoon)
	putFlag(v, ParamNegRisk, c.NegRisk)

	if c.Search != "" {
		v.Set(ParamSearch, c.Search)
	}
	if len(c.Categories) > 0 {
		v.Set(ParamCategory, strings.Join(c.Categories, ","))
	}
	if q.Sort.Active() {
		v.Set(ParamSort, string(q.Sort.Key))
		v.Set(ParamOrder, string(q.Sort.Order))
	}
	if q.Page > 0 {
		v.Set(ParamPage, strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set(ParamPageSize, strconv.Itoa(q.PageSize))
	}
	return v
}

func putRange(v url.Values, r *Range, minName, maxName string) {
	if r == nil {
		return
	}
	v.Set(minName, strconv.FormatFloat(r.Min, 'f', -1, 64))
	if !math.IsInf(r.Max, 1) {
		v.Set(maxName, strconv.FormatFloat(r.Max, 'f', -1, 64))
	}
}

func putFlag(v url.Values, name string, on bool) {
	if on {
		v.Set(name, "true")
	}
}
