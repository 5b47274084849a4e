// Package resilience keeps the correction path alive when an LLM endpoint
// degrades. A [Breaker] stops routing calls to a provider after repeated
// failures and probes it again after a cooldown; a [FallbackGroup] strings
// several providers together so the first healthy one serves each request.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is tripped and
// the cooldown has not elapsed, or while another probe is already in flight.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// State is the breaker's routing mode.
type State int

const (
	// Closed routes every call to the provider.
	Closed State = iota

	// Tripped rejects calls until the cooldown elapses.
	Tripped

	// Probing lets one call at a time through to test whether the provider
	// has recovered.
	Probing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Tripped:
		return "tripped"
	case Probing:
		return "probing"
	}
	return "invalid"
}

// BreakerConfig tunes a [Breaker]. Zero fields fall back to defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// TripAfter is the consecutive-failure count that trips the breaker.
	// Default: 5.
	TripAfter int

	// Cooldown is how long a tripped breaker rejects calls before it starts
	// probing. Default: 30s.
	Cooldown time.Duration

	// ProbeWins is how many consecutive probe successes close the breaker
	// again. Default: 3.
	ProbeWins int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.TripAfter <= 0 {
		c.TripAfter = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.ProbeWins <= 0 {
		c.ProbeWins = 3
	}
	return c
}

// Breaker is a consecutive-failure circuit breaker. While closed it forwards
// every call; after TripAfter failures in a row it rejects calls for the
// cooldown period, then admits single probe calls until either a probe fails
// (re-trip) or ProbeWins probes succeed (close).
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	fails     int
	probeWins int
	probing   bool // a probe call is in flight
	trippedAt time.Time
}

// NewBreaker creates a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults()}
}

// Do runs fn unless the breaker rejects the call, in which case it returns
// [ErrBreakerOpen] without invoking fn.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// admit decides whether a call may proceed, moving the breaker from Tripped
// to Probing when the cooldown has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Tripped {
		if time.Since(b.trippedAt) < b.cfg.Cooldown {
			return ErrBreakerOpen
		}
		b.state = Probing
		b.probeWins = 0
		b.probing = false
		slog.Info("breaker probing provider again", "name", b.cfg.Name)
	}
	if b.state == Probing {
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
	}
	return nil
}

// settle records the outcome of an admitted call.
func (b *Breaker) settle(callErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Probing:
		b.probing = false
		if callErr != nil {
			b.trip("probe failed")
			return
		}
		b.probeWins++
		if b.probeWins >= b.cfg.ProbeWins {
			b.state = Closed
			b.fails = 0
			slog.Info("breaker closed, provider recovered", "name", b.cfg.Name)
		}

	case Closed:
		if callErr == nil {
			b.fails = 0
			return
		}
		b.fails++
		if b.fails >= b.cfg.TripAfter {
			b.trip("consecutive failures")
		}
	}
}

// trip moves the breaker to Tripped. Caller holds b.mu.
func (b *Breaker) trip(reason string) {
	b.state = Tripped
	b.trippedAt = time.Now()
	b.probeWins = 0
	b.probing = false
	slog.Warn("breaker tripped",
		"name", b.cfg.Name,
		"reason", reason,
		"cooldown", b.cfg.Cooldown,
	)
}

// State reports the mode the next call would see: a tripped breaker whose
// cooldown has elapsed reports Probing even though the transition happens on
// the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Tripped && time.Since(b.trippedAt) >= b.cfg.Cooldown {
		return Probing
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.fails = 0
	b.probeWins = 0
	b.probing = false
	slog.Info("breaker reset", "name", b.cfg.Name)
}
