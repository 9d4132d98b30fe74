package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/playgrid/fieldbook/utils"
)

// OperationExecutor wraps fallible operations with bounded retries and a
// circuit breaker per logical context ("database", "stripe", ...). Breaker
// state is process-local and advisory; the database transaction remains the
// final arbiter of correctness.
type OperationExecutor struct {
	breakers      map[string]*CircuitBreaker
	retryConfig   RetryConfig
	breakerConfig CircuitBreakerConfig
	mu            sync.RWMutex
}

type ExecutorConfig struct {
	RetryConfig   RetryConfig
	BreakerConfig CircuitBreakerConfig
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		RetryConfig: DefaultRetryConfig(),
		BreakerConfig: CircuitBreakerConfig{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
			HalfOpenMax: 3,
		},
	}
}

func CreateOperationExecutor(cfg ExecutorConfig) *OperationExecutor {
	return &OperationExecutor{
		breakers:      make(map[string]*CircuitBreaker),
		retryConfig:   cfg.RetryConfig,
		breakerConfig: cfg.BreakerConfig,
	}
}

// Execute runs fn through the breaker for the given context name, retrying
// per options. An open circuit fails fast with ErrCircuitOpen without
// invoking fn.
func (e *OperationExecutor) Execute(ctx context.Context, contextName string, fn func() error) error {
	return e.ExecuteWithOptions(ctx, contextName, e.retryConfig, fn)
}

func (e *OperationExecutor) ExecuteWithOptions(ctx context.Context, contextName string, retryCfg RetryConfig, fn func() error) error {
	breaker := e.getOrCreateBreaker(contextName)

	return breaker.Execute(func() error {
		_, err := Retry(ctx, retryCfg, fn)
		return err
	})
}

func (e *OperationExecutor) getOrCreateBreaker(contextName string) *CircuitBreaker {
	e.mu.RLock()
	breaker, exists := e.breakers[contextName]
	e.mu.RUnlock()

	if exists {
		return breaker
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, exists = e.breakers[contextName]; exists {
		return breaker
	}

	cfg := e.breakerConfig
	cfg.Name = contextName
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(name string, from, to CircuitState) {
			utils.Warn(context.Background(), "circuit breaker state change", map[string]interface{}{
				"context": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		}
	}

	breaker = CreateCircuitBreaker(cfg)
	e.breakers[contextName] = breaker

	return breaker
}

func (e *OperationExecutor) BreakerState(contextName string) CircuitState {
	e.mu.RLock()
	breaker, exists := e.breakers[contextName]
	e.mu.RUnlock()

	if !exists {
		return CircuitClosed
	}
	return breaker.State()
}

func (e *OperationExecutor) ResetBreaker(contextName string) {
	e.mu.RLock()
	breaker, exists := e.breakers[contextName]
	e.mu.RUnlock()

	if exists {
		breaker.Reset()
	}
}
