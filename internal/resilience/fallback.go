package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [FallbackGroup] either
// failed or had its breaker open.
var ErrAllFailed = errors.New("resilience: every provider failed")

// FallbackConfig configures the breaker created for each member of a
// [FallbackGroup]. The Name field is overwritten with the member's name.
type FallbackConfig struct {
	Breaker BreakerConfig
}

// member pairs a provider value with its dedicated breaker.
type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup routes calls to the first healthy provider in priority order:
// the primary first, then fallbacks in the order they were added. A member
// whose breaker is open is skipped without being called.
//
// Members must all be registered before the first Execute; the group is then
// safe for concurrent use.
type FallbackGroup[T any] struct {
	members    []member[T]
	breakerCfg BreakerConfig
}

// NewFallbackGroup creates a group with primary as its highest-priority
// member.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{breakerCfg: cfg.Breaker}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends a provider behind all previously registered members.
func (g *FallbackGroup[T]) AddFallback(name string, fallback T) {
	g.add(name, fallback)
}

func (g *FallbackGroup[T]) add(name string, value T) {
	cfg := g.breakerCfg
	cfg.Name = name
	g.members = append(g.members, member[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Execute tries fn against each member in priority order until one succeeds.
// Returns [ErrAllFailed] wrapping the last error when none does.
func (g *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(g, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each member in priority order until one
// succeeds, returning that member's result. It is a package-level function
// because Go methods cannot introduce type parameters.
func ExecuteWithResult[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range g.members {
		m := &g.members[i]
		var res R
		err := m.breaker.Do(func() error {
			var fnErr error
			res, fnErr = fn(m.value)
			return fnErr
		})
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("provider skipped, breaker open", "provider", m.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", m.name, "error", err)
		}
		lastErr = err
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
