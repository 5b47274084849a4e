package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/codevox-dev/codevox/internal/resilience"
)

// corrector stands in for an LLM correction provider in group tests.
type corrector struct {
	name string
	err  error
}

func (c *corrector) correct(text string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.name + ":" + text, nil
}

func newGroup(primary *corrector, fallbacks ...*corrector) *resilience.FallbackGroup[*corrector] {
	g := resilience.NewFallbackGroup(primary, primary.name, resilience.FallbackConfig{
		Breaker: resilience.BreakerConfig{TripAfter: 1, Cooldown: time.Hour},
	})
	for _, fb := range fallbacks {
		g.AddFallback(fb.name, fb)
	}
	return g
}

func TestFallbackGroupUsesPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()

	g := newGroup(
		&corrector{name: "ollama"},
		&corrector{name: "openai"},
	)

	got, err := resilience.ExecuteWithResult(g, func(c *corrector) (string, error) {
		return c.correct("fix me")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ollama:fix me" {
		t.Errorf("result = %q, want the primary's output", got)
	}
}

func TestFallbackGroupFailsOverInOrder(t *testing.T) {
	t.Parallel()

	g := newGroup(
		&corrector{name: "ollama", err: errors.New("connection refused")},
		&corrector{name: "openai", err: errors.New("rate limited")},
		&corrector{name: "groq"},
	)

	got, err := resilience.ExecuteWithResult(g, func(c *corrector) (string, error) {
		return c.correct("fix me")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "groq:fix me" {
		t.Errorf("result = %q, want the last fallback's output", got)
	}
}

func TestFallbackGroupReturnsErrAllFailed(t *testing.T) {
	t.Parallel()

	g := newGroup(
		&corrector{name: "ollama", err: errors.New("connection refused")},
		&corrector{name: "openai", err: errors.New("rate limited")},
	)

	_, err := resilience.ExecuteWithResult(g, func(c *corrector) (string, error) {
		return c.correct("fix me")
	})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroupSkipsTrippedPrimary(t *testing.T) {
	t.Parallel()

	primary := &corrector{name: "ollama", err: errors.New("connection refused")}
	g := newGroup(primary, &corrector{name: "openai"})

	// First call fails over and trips the primary's breaker (TripAfter: 1).
	if err := g.Execute(func(c *corrector) error {
		_, err := c.correct("first")
		return err
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Subsequent calls must not touch the primary at all.
	primaryCalls := 0
	got, err := resilience.ExecuteWithResult(g, func(c *corrector) (string, error) {
		if c.name == "ollama" {
			primaryCalls++
		}
		return c.correct("second")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primaryCalls != 0 {
		t.Errorf("tripped primary was called %d times", primaryCalls)
	}
	if got != "openai:second" {
		t.Errorf("result = %q, want the fallback's output", got)
	}
}

func TestFallbackGroupSingleMember(t *testing.T) {
	t.Parallel()

	g := resilience.NewFallbackGroup(&corrector{name: "ollama"}, "ollama", resilience.FallbackConfig{})

	if err := g.Execute(func(c *corrector) error {
		_, err := c.correct("solo")
		return err
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
