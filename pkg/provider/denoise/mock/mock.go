// Package mock provides an in-memory mock implementation of the
// [denoise.Suppressor] interface for use in unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/codevox-dev/codevox/pkg/provider/denoise"
)

// Suppressor is a mock implementation of [denoise.Suppressor].
// Set the exported fields before use; inspect CallCount afterwards.
type Suppressor struct {
	mu sync.Mutex

	// ProcessErr is returned by every Process call when set.
	ProcessErr error

	// Fn, when non-nil, replaces the default pass-through behaviour.
	Fn func(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)

	// Block, when non-nil, makes Process wait for the channel (or ctx) so
	// tests can simulate a suppressor exceeding its deadline.
	Block chan struct{}

	// CallCount records how many times Process was called.
	CallCount int
}

// Compile-time interface assertion.
var _ denoise.Suppressor = (*Suppressor)(nil)

// Process implements [denoise.Suppressor]. By default it returns an
// unmodified copy of the input.
func (s *Suppressor) Process(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	s.mu.Lock()
	s.CallCount++
	fn, errResult, block := s.Fn, s.ProcessErr, s.Block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if errResult != nil {
		return nil, errResult
	}
	if fn != nil {
		return fn(ctx, samples, sampleRate)
	}

	out := make([]float32, len(samples))
	copy(out, samples)
	return out, nil
}
