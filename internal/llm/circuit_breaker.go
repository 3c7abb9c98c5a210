package llm

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls to a failing
// assistant upstream.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds the configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Default: 3
	MaxFailures uint32

	// Timeout is how long the circuit stays open before trial calls are let
	// through. Default: 30s
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of trial calls allowed while
	// half-open; all must succeed to close the circuit. Default: 2
	HalfOpenMaxSuccesses uint32

	// OnStateChange, if set, is called after every state transition.
	OnStateChange func(name, from, to string)
}

// BreakerStats is a snapshot of breaker activity since creation.
type BreakerStats struct {
	Calls               uint64 // Calls that reached the upstream
	Failures            uint64 // Calls counted against the upstream
	Rejected            uint64 // Calls refused while open or half-open saturated
	ConsecutiveFailures uint32
}

// CircuitBreaker wraps gobreaker around assistant calls.
//
// Rate limiting, auth failures and caller cancellation say nothing about the
// upstream's health and never count as failures.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string

	calls    atomic.Uint64
	failures atomic.Uint64
	rejected atomic.Uint64
}

// NewCircuitBreaker creates a breaker with default thresholds.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return NewCircuitBreakerWithConfig(CircuitBreakerConfig{Name: name})
}

// NewCircuitBreakerWithConfig creates a breaker from config, filling zero
// fields with defaults.
func NewCircuitBreakerWithConfig(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Name == "" {
		config.Name = "assistant"
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxSuccesses == 0 {
		config.HalfOpenMaxSuccesses = 2
	}

	cb := &CircuitBreaker{name: config.Name}
	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.HalfOpenMaxSuccesses,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || callerFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("WARNING: assistant breaker %s: %s -> %s", name, stateName(from), stateName(to))
			if config.OnStateChange != nil {
				config.OnStateChange(name, stateName(from), stateName(to))
			}
		},
	})
	return cb
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn. A context that is already done
// short-circuits before the breaker sees the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		cb.calls.Add(1)
		res, err := fn()
		if err != nil && !callerFault(err) {
			cb.failures.Add(1)
		}
		return res, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.rejected.Add(1)
		return nil, ErrCircuitOpen
	}
	return result, err
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	return stateName(cb.breaker.State())
}

// Stats returns a snapshot of breaker activity.
func (cb *CircuitBreaker) Stats() BreakerStats {
	return BreakerStats{
		Calls:               cb.calls.Load(),
		Failures:            cb.failures.Load(),
		Rejected:            cb.rejected.Load(),
		ConsecutiveFailures: cb.breaker.Counts().ConsecutiveFailures,
	}
}

func stateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
