package observability

import (
	"sync"
	"time"
)

// Counter names used across the booking core. Handlers and background sweeps
// increment these; /metrics exposes them.
const (
	MetricReservationsCreated  = "reservations_created"
	MetricReservationConflicts = "reservation_conflicts"
	MetricLockDenials          = "lock_denials"
	MetricBookingsConfirmed    = "bookings_confirmed"
	MetricBookingsExpired      = "bookings_expired"
	MetricBookingsCancelled    = "bookings_cancelled"
	MetricRefundsFailed        = "refunds_failed"
	MetricWebhooksProcessed    = "webhooks_processed"
	MetricWebhooksRejected     = "webhooks_rejected"
)

type Metric struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type MetricsCollector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
}

func CreateMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metric),
	}
}

func (mc *MetricsCollector) Increment(name string, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	if metric, exists := mc.metrics[key]; exists {
		metric.Value++
		metric.Timestamp = time.Now()
		return
	}

	mc.metrics[key] = &Metric{
		Name:      name,
		Value:     1,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics[metricKey(name, labels)] = &Metric{
		Name:      name,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

func (mc *MetricsCollector) Get(name string, labels map[string]string) float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if metric, exists := mc.metrics[metricKey(name, labels)]; exists {
		return metric.Value
	}
	return 0
}

func (mc *MetricsCollector) Snapshot() []*Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]*Metric, 0, len(mc.metrics))
	for _, metric := range mc.metrics {
		copied := *metric
		result = append(result, &copied)
	}
	return result
}

func metricKey(name string, labels map[string]string) string {
	key := name
	for k, v := range labels {
		key += ":" + k + "=" + v
	}
	return key
}
