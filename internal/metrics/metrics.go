package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	DatastoreQueries  metric.Int64Counter
	DatastoreDuration metric.Float64Histogram
	IngestedEntities  metric.Int64Counter
	ActiveConnections metric.Int64UpDownCounter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

// NewNoop returns instruments backed by the global (no-op until configured)
// meter provider. Tests and short-lived commands use it.
func NewNoop() *Metrics {
	m, err := newMetrics(otel.GetMeterProvider().Meter("polyscreen-noop"))
	if err != nil {
		// The global provider never rejects instrument definitions.
		panic(err)
	}
	return m
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequests, err = meter.Int64Counter(
		"polyscreen_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"polyscreen_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"polyscreen_cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"polyscreen_cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	m.DatastoreQueries, err = meter.Int64Counter(
		"polyscreen_datastore_queries_total",
		metric.WithDescription("Total number of datastore queries by table and outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.DatastoreDuration, err = meter.Float64Histogram(
		"polyscreen_datastore_duration_seconds",
		metric.WithDescription("Datastore query duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.IngestedEntities, err = meter.Int64Counter(
		"polyscreen_ingested_entities_total",
		metric.WithDescription("Total number of events and markets upserted by ingest"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"polyscreen_websocket_connections",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordCacheHit(ctx context.Context, key string) {
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, key string) {
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordDatastoreQuery(ctx context.Context, table string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	labels := metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("outcome", outcome),
	)
	m.DatastoreQueries.Add(ctx, 1, labels)
	m.DatastoreDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordIngested(ctx context.Context, kind string, n int) {
	m.IngestedEntities.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	m.ActiveConnections.Add(ctx, -1)
}
