// Package mock provides an in-memory implementation of [audio.Source] for use
// in unit tests. The mock is driven by the test: push frames with
// [Source.Push], then call [Source.Finish] to close the stream.
package mock

import (
	"sync"

	"github.com/codevox-dev/codevox/pkg/audio"
)

// Source is a mock implementation of [audio.Source]. It is safe for
// concurrent use.
type Source struct {
	mu sync.Mutex

	frames chan audio.Frame

	// FinishErr, when set before Finish is called, becomes the value
	// returned by Err after the stream closes. Use it to simulate a device
	// disconnect mid-stream.
	FinishErr error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	finished bool
}

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// NewSource creates a mock source with the given frame channel buffer size.
func NewSource(buffer int) *Source {
	return &Source{frames: make(chan audio.Frame, buffer)}
}

// Push enqueues a frame for the consumer. Blocks if the buffer is full.
// Panics if called after Finish, matching the send-on-closed-channel
// behaviour a real source would never exhibit.
func (s *Source) Push(f audio.Frame) {
	s.frames <- f
}

// Finish closes the frame stream. Safe to call once.
func (s *Source) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.finished = true
		close(s.frames)
	}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Err implements [audio.Source]. Returns FinishErr.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinishErr
}

// Close implements [audio.Source]. Records the call and closes the stream.
func (s *Source) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	s.mu.Unlock()
	s.Finish()
	return nil
}
