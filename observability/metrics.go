package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for syndicate, backed by any go-utils
// MetricFactory.
type Metrics struct {
	PostsPublishedTotal gu.Counter
	DeliveriesTotal     gu.Counter
	DeliveryLatency     gu.Histogram
	FailureRecords      gu.Gauge
	PendingDeliveries   gu.Gauge
}

// NewMetrics creates syndicate metric instruments using the supplied factory.
// Pass metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		PostsPublishedTotal: factory.Counter("syndicate_posts_published_total"),
		DeliveriesTotal:     factory.Counter("syndicate_deliveries_total"),
		DeliveryLatency:     factory.Histogram("syndicate_delivery_latency_seconds"),
		FailureRecords:      factory.Gauge("syndicate_failure_records"),
		PendingDeliveries:   factory.Gauge("syndicate_pending_deliveries"),
	}
}

// RecordDelivery records a delivery attempt with the given status and latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

// RecordPublish records one accepted post publication.
func (m *Metrics) RecordPublish(postType string) {
	m.PostsPublishedTotal.WithLabels(map[string]string{"type": postType}).Inc()
}
