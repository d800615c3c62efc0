// Package resilience wraps outbound provider calls in per-provider circuit
// breakers, bounded retries and a shared health registry.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerPolicy decides when a provider's circuit opens and how it recovers.
type BreakerPolicy struct {
	// MinRequests is the sample size below which the circuit never trips.
	MinRequests uint32
	// FailureRatio trips the circuit once reached over the current window.
	FailureRatio float64
	// Window clears counts while closed. Zero keeps them until a state change.
	Window time.Duration
	// OpenFor is how long the circuit stays open before probing.
	OpenFor time.Duration
	// Probes is the number of requests let through while half-open.
	Probes uint32

	OnStateChange func(name string, from, to gobreaker.State)
}

// RequestPolicy suits one-call-per-request providers such as directions.
func RequestPolicy() BreakerPolicy {
	return BreakerPolicy{MinRequests: 5, FailureRatio: 0.5, Window: time.Minute, OpenFor: time.Minute, Probes: 1}
}

// FanOutPolicy suits per-point lookups issued in bursts of 20 or more along a
// route. It needs a larger, mostly failing sample before tripping.
func FanOutPolicy() BreakerPolicy {
	return BreakerPolicy{MinRequests: 20, FailureRatio: 0.8, Window: time.Minute, OpenFor: 30 * time.Second, Probes: 1}
}

// Trips reports whether counts should open the circuit.
func (p BreakerPolicy) Trips(counts gobreaker.Counts) bool {
	if counts.Requests == 0 || counts.Requests < p.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.FailureRatio
}

func newBreaker[T any](name string, p BreakerPolicy) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          name,
		MaxRequests:   p.Probes,
		Interval:      p.Window,
		Timeout:       p.OpenFor,
		ReadyToTrip:   p.Trips,
		OnStateChange: p.OnStateChange,
	})
}

// StateName renders a breaker state the way the ops endpoints report it.
func StateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half_open"
	case gobreaker.StateOpen:
		return "open"
	}
	return "unknown"
}
