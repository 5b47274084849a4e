// Package mock provides a mock implementation of the asr provider interfaces
// for testing.
package mock

import (
	"context"
	"sync"

	"github.com/codevox-dev/codevox/pkg/provider/asr"
)

// Compile-time assertion that Transcriber satisfies asr.Transcriber.
var _ asr.Transcriber = (*Transcriber)(nil)

// Transcriber is a mock implementation of asr.Transcriber. Hypotheses are
// replayed in order; when exhausted, the last one repeats. Fn, when set,
// overrides the scripted behavior entirely.
type Transcriber struct {
	mu sync.Mutex

	// Hypotheses are returned in order by successive Transcribe calls.
	Hypotheses []*asr.Hypothesis
	// TranscribeErr, when set, is returned by every Transcribe call.
	TranscribeErr error
	// Fn, when set, handles Transcribe calls directly.
	Fn func(ctx context.Context, req asr.Request) (*asr.Hypothesis, error)
	// Partials are forwarded to req.OnPartial before returning, if set.
	Partials []string
	// Block, when non-nil, is received from before returning; lets tests
	// simulate slow decodes and deadline expiry.
	Block chan struct{}

	// CallCount tracks the number of Transcribe invocations.
	CallCount int
	// LastRequest records the most recent request for assertions on the
	// bias prompt and language.
	LastRequest asr.Request

	next int
}

// Transcribe implements asr.Transcriber.
func (m *Transcriber) Transcribe(ctx context.Context, req asr.Request) (*asr.Hypothesis, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastRequest = req
	fn := m.Fn
	block := m.Block
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TranscribeErr != nil {
		return nil, m.TranscribeErr
	}

	if req.OnPartial != nil {
		for _, p := range m.Partials {
			req.OnPartial(p)
		}
	}

	if len(m.Hypotheses) == 0 {
		return &asr.Hypothesis{}, nil
	}
	idx := m.next
	if idx >= len(m.Hypotheses) {
		idx = len(m.Hypotheses) - 1
	}
	m.next++
	return m.Hypotheses[idx], nil
}

// Calls returns the number of Transcribe invocations, safely.
func (m *Transcriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
