// Package mock provides in-memory mock implementations of the [vad.Engine]
// and [vad.SessionHandle] interfaces for use in unit tests.
//
// The mock session is scripted: set Decisions (consumed one per Classify
// call) or a Fn override, and inspect the Call* fields afterwards.
package mock

import (
	"sync"

	"github.com/codevox-dev/codevox/pkg/provider/vad"
)

// Session is a mock implementation of [vad.SessionHandle].
type Session struct {
	mu sync.Mutex

	// Decisions is replayed one entry per Classify call. When exhausted,
	// Classify returns the zero Decision (non-speech).
	Decisions []vad.Decision

	// Fn, when non-nil, overrides Decisions entirely.
	Fn func(frame []float32) (vad.Decision, error)

	// ClassifyErr is returned by every Classify call when set.
	ClassifyErr error

	// CallCountClassify records how many times Classify was called.
	CallCountClassify int

	// CallCountReset records how many times Reset was called.
	CallCountReset int

	next int
}

// Compile-time interface assertion.
var _ vad.SessionHandle = (*Session)(nil)

// Classify implements [vad.SessionHandle].
func (s *Session) Classify(frame []float32) (vad.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClassify++

	if s.Fn != nil {
		return s.Fn(frame)
	}
	if s.ClassifyErr != nil {
		return vad.Decision{}, s.ClassifyErr
	}
	if s.next < len(s.Decisions) {
		d := s.Decisions[s.next]
		s.next++
		return d, nil
	}
	return vad.Decision{}, nil
}

// Reset implements [vad.SessionHandle]. Rewinds the scripted decisions.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountReset++
	s.next = 0
}

// Close implements [vad.SessionHandle].
func (s *Session) Close() error { return nil }

// Engine is a mock implementation of [vad.Engine] that hands out a fixed
// session.
type Engine struct {
	// SessionResult is returned by NewSession. Defaults to an empty Session.
	SessionResult vad.SessionHandle

	// NewSessionErr is returned by NewSession when set.
	NewSessionErr error
}

// Compile-time interface assertion.
var _ vad.Engine = (*Engine)(nil)

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(_ vad.Config) (vad.SessionHandle, error) {
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.SessionResult == nil {
		return &Session{}, nil
	}
	return e.SessionResult, nil
}
