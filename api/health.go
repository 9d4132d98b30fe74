package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/playgrid/fieldbook/observability"
)

type HealthHandler struct {
	checker *observability.HealthChecker
	metrics *observability.MetricsCollector
}

func CreateHealthHandler(checker *observability.HealthChecker, metrics *observability.MetricsCollector) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		metrics: metrics,
	}
}

var startTime = time.Now()

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := h.checker.RunChecks(r.Context())
	overall := h.checker.GetOverallStatus(checks)

	status := http.StatusOK
	if overall == observability.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    overall,
		"checks":    checks,
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now(),
	})
}

func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.metrics.SetGauge("goroutines", float64(runtime.NumGoroutine()), nil)
	h.metrics.SetGauge("heap_alloc_bytes", float64(m.Alloc), nil)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"counters":   h.metrics.Snapshot(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]uint64{
			"alloc":       m.Alloc,
			"total_alloc": m.TotalAlloc,
			"sys":         m.Sys,
			"num_gc":      uint64(m.NumGC),
		},
		"uptime": time.Since(startTime).String(),
	})
}

func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
	router.HandleFunc("/metrics", h.HandleMetrics).Methods("GET")
}
