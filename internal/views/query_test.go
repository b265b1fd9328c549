package views

import (
	"errors"
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventQueryDefaults(t *testing.T) {
	q, err := ParseEventQuery(url.Values{})
	require.NoError(t, err)

	assert.Nil(t, q.Criteria.TotalVolume)
	assert.False(t, q.Sort.Active())
	assert.False(t, q.Paginated())
}

func TestParseEventQuery(t *testing.T) {
	v, err := url.ParseQuery("minTotalVolume=1000&maxVolume24hr=50&new=true&featured=1&endingSoon=true" +
		"&search=Trump&category=Politics,+Crypto,&sort=liquidity&page=2&pageSize=10&minOutcomeYesPrice=0.5")
	require.NoError(t, err)

	q, err := ParseEventQuery(v)
	require.NoError(t, err)

	require.NotNil(t, q.Criteria.TotalVolume)
	assert.Equal(t, 1000.0, q.Criteria.TotalVolume.Min)
	assert.True(t, math.IsInf(q.Criteria.TotalVolume.Max, 1))

	require.NotNil(t, q.Criteria.Volume24hr)
	assert.Equal(t, Range{Min: 0, Max: 50}, *q.Criteria.Volume24hr)

	assert.True(t, q.Criteria.New)
	assert.False(t, q.Criteria.Featured, "only the literal true enables a flag")
	assert.True(t, q.Criteria.EndingSoon)
	assert.Equal(t, "Trump", q.Criteria.Search)
	assert.Equal(t, []string{"Politics", "Crypto"}, q.Criteria.Categories)
	assert.Nil(t, q.Criteria.YesPrice, "price bounds do not apply to events")

	assert.Equal(t, SortState{Key: SortLiquidity, Order: OrderDesc}, q.Sort)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 10, q.PageSize)
}

func TestParseMarketQueryPriceDefaults(t *testing.T) {
	q, err := ParseMarketQuery(url.Values{"minOutcomeNoPrice": {"0.2"}, "maxVolume1mo": {"5000"}, "order": {"asc"}, "sort": {"outcomeYesPrice"}})
	require.NoError(t, err)

	require.NotNil(t, q.Criteria.NoPrice)
	assert.Equal(t, Range{Min: 0.2, Max: 1}, *q.Criteria.NoPrice)
	require.NotNil(t, q.Criteria.Volume1mo)
	assert.Equal(t, Range{Min: 0, Max: 5000}, *q.Criteria.Volume1mo)
	assert.Equal(t, SortState{Key: SortYesPrice, Order: OrderAsc}, q.Sort)
}

func TestParseQueryErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		param string
	}{
		{"non numeric bound", "minLiquidity=lots", "minLiquidity"},
		{"nan bound", "maxTotalVolume=NaN", "maxTotalVolume"},
		{"unknown sort", "sort=outcomeYesPrice", "sort"},
		{"bad order", "sort=volume&order=up", "order"},
		{"page zero", "page=0", "page"},
		{"page size text", "pageSize=ten", "pageSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			_, err = ParseEventQuery(v)
			require.Error(t, err)

			var perr *ParamError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.param, perr.Name)
			assert.Equal(t, "invalid parameter "+tt.param, err.Error())
		})
	}
}

func TestQueryValuesRoundTrip(t *testing.T) {
	in := Query{
		Criteria: Criteria{
			TotalVolume: &Range{Min: 100, Max: math.Inf(1)},
			YesPrice:    &Range{Min: 0.1, Max: 0.9},
			NegRisk:     true,
			Search:      "y win",
		},
		Sort:     SortState{Key: SortVolume, Order: OrderAsc},
		Page:     3,
		PageSize: 20,
	}

	v := in.Values()
	assert.Equal(t, "100", v.Get(ParamMinTotalVolume))
	assert.Empty(t, v.Get(ParamMaxTotalVolume))
	assert.Equal(t, "true", v.Get(ParamNegRisk))
	assert.Empty(t, v.Get(ParamNew))

	out, err := ParseMarketQuery(v)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
