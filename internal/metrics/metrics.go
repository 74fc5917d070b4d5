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

// Metrics holds the service instruments. A nil *Metrics records nothing,
// so components can be built without a meter in tests.
type Metrics struct {
	HTTPRequests metric.Int64Counter
	HTTPDuration metric.Float64Histogram

	SyncEvents      metric.Int64Counter
	SyncRunDuration metric.Float64Histogram
	SyncBatchSize   metric.Int64Histogram
	QueueDropped    metric.Int64Counter

	Queries       metric.Int64Counter
	QueryDuration metric.Float64Histogram
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := New(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

// New creates every instrument on the given meter
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequests, err = meter.Int64Counter(
		"board_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"board_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.SyncEvents, err = meter.Int64Counter(
		"board_sync_events_total",
		metric.WithDescription("Sync events applied to the search index, by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.SyncRunDuration, err = meter.Float64Histogram(
		"board_sync_run_duration_seconds",
		metric.WithDescription("Duration of sync worker runs that processed events"),
	)
	if err != nil {
		return nil, err
	}

	m.SyncBatchSize, err = meter.Int64Histogram(
		"board_sync_batch_size",
		metric.WithDescription("Events drained from the queue per sync run"),
	)
	if err != nil {
		return nil, err
	}

	m.QueueDropped, err = meter.Int64Counter(
		"board_sync_queue_dropped_total",
		metric.WithDescription("Sync events evicted from a full queue"),
	)
	if err != nil {
		return nil, err
	}

	m.Queries, err = meter.Int64Counter(
		"board_queries_total",
		metric.WithDescription("List and search queries, by source and search type"),
	)
	if err != nil {
		return nil, err
	}

	m.QueryDuration, err = meter.Float64Histogram(
		"board_query_duration_seconds",
		metric.WithDescription("List and search query duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// RecordSyncEvent counts one applied event; outcome is "success" or "failure"
func (m *Metrics) RecordSyncEvent(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.SyncEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordSyncRun(ctx context.Context, batchSize int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SyncBatchSize.Record(ctx, int64(batchSize))
	m.SyncRunDuration.Record(ctx, duration.Seconds())
}

func (m *Metrics) RecordQueueDrop(ctx context.Context) {
	if m == nil {
		return
	}
	m.QueueDropped.Add(ctx, 1)
}

// RecordQuery counts a routed query; source is "store" or "index"
func (m *Metrics) RecordQuery(ctx context.Context, source, searchType string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("search_type", searchType),
		attribute.Bool("error", failed),
	)
	m.Queries.Add(ctx, 1, labels)
	m.QueryDuration.Record(ctx, duration.Seconds(), labels)
}
