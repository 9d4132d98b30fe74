package observability

import (
	"context"
	"errors"
	"testing"
)

func TestCollectorIncrementAndGauge(t *testing.T) {
	mc := CreateMetricsCollector()

	mc.Increment(MetricReservationsCreated, nil)
	mc.Increment(MetricReservationsCreated, nil)
	if got := mc.Get(MetricReservationsCreated, nil); got != 2 {
		t.Errorf("counter = %v, want 2", got)
	}

	labels := map[string]string{"gateway": "stripe"}
	mc.Increment(MetricWebhooksProcessed, labels)
	if got := mc.Get(MetricWebhooksProcessed, labels); got != 1 {
		t.Errorf("labeled counter = %v, want 1", got)
	}
	if got := mc.Get(MetricWebhooksProcessed, nil); got != 0 {
		t.Errorf("unlabeled counter = %v, want 0", got)
	}

	mc.SetGauge("goroutines", 42, nil)
	mc.SetGauge("goroutines", 17, nil)
	if got := mc.Get("goroutines", nil); got != 17 {
		t.Errorf("gauge = %v, want 17", got)
	}

	snapshot := mc.Snapshot()
	if len(snapshot) != 3 {
		t.Errorf("snapshot has %d metrics, want 3", len(snapshot))
	}
	// mutating the snapshot must not touch the collector
	for _, m := range snapshot {
		m.Value = -1
	}
	if got := mc.Get("goroutines", nil); got != 17 {
		t.Errorf("gauge after snapshot mutation = %v, want 17", got)
	}
}

func TestHealthCheckerOverallStatus(t *testing.T) {
	hc := CreateHealthChecker()
	hc.AddCheck("ok", func(ctx context.Context) error { return nil })

	checks := hc.RunChecks(context.Background())
	if got := hc.GetOverallStatus(checks); got != Healthy {
		t.Errorf("overall = %s, want %s", got, Healthy)
	}

	hc.AddCheck("down", func(ctx context.Context) error { return errors.New("dial refused") })
	checks = hc.RunChecks(context.Background())
	if got := hc.GetOverallStatus(checks); got != Unhealthy {
		t.Errorf("overall = %s, want %s", got, Unhealthy)
	}
	if checks["down"].Message == "" {
		t.Error("expected failing check to carry its error message")
	}
}
