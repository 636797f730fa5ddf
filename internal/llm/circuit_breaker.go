package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker rejects a call outright. The
// resolver and synthesizer treat it like any other collaborator failure and
// take their deterministic paths, so a dead backend costs one failed call
// per window instead of one timeout per entity.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig tunes the trip behavior.
type CircuitBreakerConfig struct {
	// MaxFailures is how many consecutive failures trip the circuit.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is how many probe successes close it again.
	HalfOpenMaxSuccesses uint32
}

// CircuitBreakerMetrics is a snapshot of call counters.
type CircuitBreakerMetrics struct {
	TotalRequests        uint64
	TotalSuccesses       uint64
	TotalFailures        uint64
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker guards arbitration, summarization, and embedding calls
// against a struggling backend.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker

	requests  atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
}

// NewCircuitBreaker returns a breaker with defaults suited to a local
// model server: trip after 3 consecutive failures, probe after 30s.
func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	})
}

// NewCircuitBreakerWithConfig returns a breaker with explicit tuning.
func NewCircuitBreakerWithConfig(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm",
			MaxRequests: cfg.HalfOpenMaxSuccesses,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxFailures
			},
		}),
	}
}

// Execute runs fn unless the circuit is open or ctx is already done. An
// open circuit surfaces as ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		cb.requests.Add(1)
		cb.failures.Add(1)
		return nil, err
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	cb.requests.Add(1)
	if err != nil {
		cb.failures.Add(1)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	cb.successes.Add(1)
	return result, nil
}

// State reports "closed", "open", or "half-open".
func (cb *CircuitBreaker) State() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Metrics returns the current counter snapshot.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	counts := cb.breaker.Counts()
	return CircuitBreakerMetrics{
		TotalRequests:        cb.requests.Load(),
		TotalSuccesses:       cb.successes.Load(),
		TotalFailures:        cb.failures.Load(),
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}
