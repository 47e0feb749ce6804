package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the marketplace's domain counters. Instruments come
// from the global MeterProvider, so constructing Metrics before
// InitMeterProvider yields no-op counters. Unit tests rely on that.
type Metrics struct {
	OrdersCreated  metric.Int64Counter
	GroupsRejected metric.Int64Counter
	OrdersSwept    metric.Int64Counter
	CacheHits      metric.Int64Counter
	CacheMisses    metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("market-api")

	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders successfully placed"))
	if err != nil {
		return nil, err
	}

	groupsRejected, err := meter.Int64Counter("order_groups_rejected_total",
		metric.WithDescription("Seller-groups rejected during checkout"))
	if err != nil {
		return nil, err
	}

	ordersSwept, err := meter.Int64Counter("orders_swept_total",
		metric.WithDescription("Unpaid orders cancelled by the timeout sweeper"))
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter("item_cache_hits_total",
		metric.WithDescription("Catalog cache hits"))
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter("item_cache_misses_total",
		metric.WithDescription("Catalog cache misses"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		OrdersCreated:  ordersCreated,
		GroupsRejected: groupsRejected,
		OrdersSwept:    ordersSwept,
		CacheHits:      cacheHits,
		CacheMisses:    cacheMisses,
	}, nil
}
