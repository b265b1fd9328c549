package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyscreen/polyscreen-backend/internal/db"
	"github.com/polyscreen/polyscreen-backend/internal/gamma"
	"github.com/polyscreen/polyscreen-backend/internal/log"
	"github.com/polyscreen/polyscreen-backend/internal/metrics"
	"github.com/polyscreen/polyscreen-backend/internal/repository"
)

const gammaPage = `[
  {
    "id": "903",
    "slug": "fed-decision-december",
    "title": "Fed decision in December?",
    "endDate": "2025-12-10T19:00:00Z",
    "active": true,
    "liquidity": "820000",
    "volume": 41000000,
    "volume24hr": "350000",
    "tags": [{"id": "100", "label": "Economy", "slug": "economy"}],
    "markets": [
      {
        "id": "5001",
        "question": "Will the Fed cut 25 bps?",
        "liquidity": "500000",
        "volume": "30000000",
        "volume24hr": 250000,
        "outcomes": "[\"Yes\", \"No\"]",
        "outcomePrices": "[\"0.71\", \"0.29\"]"
      },
      {
        "id": "5002",
        "question": "Will the Fed hold rates?",
        "liquidity": "320000",
        "volume": "11000000",
        "volume24hr": 100000,
        "outcomes": "[\"Yes\", \"No\"]",
        "outcomePrices": "[\"0.27\", \"0.73\"]"
      }
    ]
  }
]`

func TestRunUpsertsAndExportsIngestedCounts(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, gammaPage)
	}))
	defer source.Close()

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	logger := log.NewNop()
	require.NoError(t, db.Migrate(conn, db.DriverSQLite, logger))

	m, handler, err := metrics.Setup("polyscreen-ingest")
	require.NoError(t, err)

	repo := repository.NewRepository(conn, db.DriverSQLite, logger, m)
	in := &ingester{
		source:   gamma.NewClient(source.URL, 100, time.Second, logger),
		repo:     repo,
		pageSize: 50,
		maxPages: 3,
		logger:   logger,
		metrics:  m,
	}
	require.NoError(t, in.run(ctx))

	events, err := repo.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "903", events[0].EventID)
	assert.Len(t, events[0].Markets, 2)

	scrape := httptest.NewServer(metricsRouter(handler))
	defer scrape.Close()

	resp, err := http.Get(scrape.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "polyscreen_ingested_entities_total")
	assert.Contains(t, string(body), `kind="event"`)
	assert.Contains(t, string(body), `kind="market"`)
}

func TestRunFailsWhenSourceIsDown(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer source.Close()

	in := &ingester{
		source:   gamma.NewClient(source.URL, 100, time.Second, nil),
		pageSize: 50,
		maxPages: 1,
		logger:   log.NewNop(),
		metrics:  metrics.NewNoop(),
	}
	err := in.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch gamma events")
}
