// Package circuitbreaker wraps sony/gobreaker with defaults suited to
// request-path catalog lookups: trip after a run of consecutive failures,
// probe again after a short cooldown.
package circuitbreaker

import (
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
)

func New[T any](name string) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %q: %s -> %s", name, from, to)
		},
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}
