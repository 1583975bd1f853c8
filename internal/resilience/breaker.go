// Package resilience provides bounded retry and failure-tripping patterns
// for calls to the email provider and the extraction service.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrUnavailable is returned when a call is rejected because the breaker has
// tripped. Callers treat it as the service being unreachable, which is fatal
// to a running job rather than a per-item failure.
var ErrUnavailable = eris.New("service unavailable: failure threshold exceeded")

// Breaker trips after a run of consecutive failures and rejects calls until
// a cooldown has passed. One probe call is let through after the cooldown;
// its outcome decides whether the breaker closes again.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	tripped  bool
	lastFail time.Time
	now      func() time.Time
}

// NewBreaker creates a breaker that trips after threshold consecutive
// failures and allows a probe after cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. While tripped, only the first
// call after the cooldown window is allowed through as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return nil
	}
	if b.now().Sub(b.lastFail) >= b.cooldown {
		// Probe: count it as the next failure window.
		return nil
	}
	return ErrUnavailable
}

// Record feeds a call outcome into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.tripped = false
		return
	}
	b.failures++
	b.lastFail = b.now()
	if b.failures >= b.threshold {
		b.tripped = true
	}
}

// Tripped reports whether the breaker is currently rejecting calls.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped && b.now().Sub(b.lastFail) < b.cooldown
}
