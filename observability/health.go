package observability

import (
	"context"
	"sync"
	"time"
)

type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
	Unknown   HealthStatus = "unknown"
)

type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration"`
}

// HealthChecker runs the registered dependency probes (database, lock
// store) on demand for the health endpoint.
type HealthChecker struct {
	checks map[string]func(context.Context) error
	mu     sync.RWMutex
}

func CreateHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]func(context.Context) error),
	}
}

func (hc *HealthChecker) AddCheck(name string, checkFunc func(context.Context) error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = checkFunc
}

func (hc *HealthChecker) RunChecks(ctx context.Context) map[string]*HealthCheck {
	hc.mu.RLock()
	checks := make(map[string]func(context.Context) error, len(hc.checks))
	for k, v := range hc.checks {
		checks[k] = v
	}
	hc.mu.RUnlock()

	results := make(map[string]*HealthCheck)

	for name, checkFunc := range checks {
		start := time.Now()
		err := checkFunc(ctx)
		duration := time.Since(start)

		status := Healthy
		message := "OK"
		if err != nil {
			status = Unhealthy
			message = err.Error()
		}

		results[name] = &HealthCheck{
			Name:        name,
			Status:      status,
			Message:     message,
			LastChecked: time.Now(),
			Duration:    duration,
		}
	}

	return results
}

func (hc *HealthChecker) GetOverallStatus(checks map[string]*HealthCheck) HealthStatus {
	if len(checks) == 0 {
		return Unknown
	}

	for _, check := range checks {
		if check.Status == Unhealthy {
			return Unhealthy
		}
	}
	return Healthy
}
