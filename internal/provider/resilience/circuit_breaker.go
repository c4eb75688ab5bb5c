// Package resilience wraps upstream routing and weather calls with circuit
// breakers, retries, and a health registry for the ops status endpoint.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Trip thresholds used by DefaultReadyToTrip.
const (
	// DefaultMinRequests is how many requests a window needs before the
	// failure ratio is considered.
	DefaultMinRequests = 5

	// DefaultFailureRatio trips the breaker once this share of requests fail.
	DefaultFailureRatio = 0.5

	// DefaultConsecutiveFailures trips the breaker regardless of the window
	// size. A provider that stops answering mid-prediction fails every
	// corridor point in a row.
	DefaultConsecutiveFailures = 8
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in the registry.
	Name string

	// MaxRequests is the number of probes allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval clears counts while closed. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	// Default: 60 seconds
	Timeout time.Duration

	// ReadyToTrip decides when to open. If nil, uses DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called after every state transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for provider
// clients.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    2 * time.Minute,
		Timeout:     60 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker on a run of consecutive failures, or
// once enough requests were made and half of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return TripOn(DefaultMinRequests, DefaultFailureRatio, DefaultConsecutiveFailures)(counts)
}

// TripOn builds a ReadyToTrip func. A zero consecutive disables the
// consecutive failure rule.
func TripOn(minRequests uint32, ratio float64, consecutive uint32) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if consecutive > 0 && counts.ConsecutiveFailures >= consecutive {
			return true
		}
		if counts.Requests < minRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// countsAsSuccess keeps caller cancellations from tripping a healthy
// provider's breaker.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = DefaultReadyToTrip
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   readyToTrip,
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  countsAsSuccess,
	})
}
