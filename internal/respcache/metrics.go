package respcache

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type lookupStatus string

const (
	lookupHit     lookupStatus = "hit"
	lookupMiss    lookupStatus = "miss"
	lookupExpired lookupStatus = "expired"
	lookupCorrupt lookupStatus = "corrupt"
)

var (
	metricsOnce  sync.Once
	cacheLookups metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/lumahq/luma-guard/internal/respcache")

		var err error
		cacheLookups, err = meter.Int64Counter(
			"cache.lookups",
			metric.WithDescription("Response cache lookups by status"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Stats holds lookup counters. Expired and corrupt reads count as misses.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// metrics tracks hit/miss counters locally and mirrors them to the
// OpenTelemetry meter, so the hit rate reported is the real one.
type metrics struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func newMetrics() *metrics {
	initMetrics()
	return &metrics{}
}

func (m *metrics) recordLookup(ctx context.Context, status lookupStatus) {
	if status == lookupHit {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}

	if cacheLookups != nil {
		cacheLookups.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("cache.status", string(status)),
			),
		)
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("cache.lookup.status", string(status)))
}

func (m *metrics) snapshot() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
	}
}
