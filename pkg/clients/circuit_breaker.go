package clients

import (
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"trawler/pkg/logging"
)

// CircuitBreakerConfig configures the circuit breaker for an upstream.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker in logs
	Name string

	// Timeout is the duration the circuit stays open before transitioning
	// to half-open. Default: 15 seconds.
	Timeout time.Duration

	// FailureThreshold / MinRequests: the circuit opens when at least
	// FailureThreshold of the last MinRequests attempts failed.
	FailureThreshold uint
	MinRequests      uint

	Logger logging.Logger
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
		MinRequests:      10,
	}
}

// CircuitBreaker wraps failsafe-go's circuit breaker for HTTP upstreams.
type CircuitBreaker struct {
	policy circuitbreaker.CircuitBreaker[*http.Response]
	name   string
}

// NewCircuitBreaker creates a circuit breaker with the given configuration.
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Name == "" {
		cfg.Name = "circuit-breaker"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}

	builder := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(cfg.FailureThreshold, cfg.MinRequests).
		WithDelay(cfg.Timeout).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode >= 500
		})

	if cfg.Logger != nil {
		builder = builder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			cfg.Logger.WithFields(logging.Fields{
				"circuit_breaker": cfg.Name,
				"from_state":      event.OldState.String(),
				"to_state":        event.NewState.String(),
			}).Warn("circuit breaker state change")
		})
	}

	return &CircuitBreaker{
		policy: builder.Build(),
		name:   cfg.Name,
	}
}

// IsOpen returns true if the circuit breaker is open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.policy.IsOpen()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
