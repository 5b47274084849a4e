// Package asr defines the Transcriber interface for acoustic transcription
// backends.
//
// A transcriber turns one speech span into one [Hypothesis]. Partial text may
// be surfaced through the request's OnPartial callback while decoding runs,
// but partials are a UI side channel only — the returned Hypothesis is the
// single authoritative result for the span.
//
// Implementations must be safe for concurrent use; the pipeline additionally
// guarantees single-flight per model, so an implementation never sees two
// simultaneous Transcribe calls for the same underlying model.
package asr

import (
	"context"
	"errors"
)

// ErrTranscription wraps inference failures. The pipeline drops the affected
// utterance, logs, and resumes at silence — consumed audio is not replayable.
var ErrTranscription = errors.New("asr: transcription failed")

// Transcriber is the abstraction over any acoustic model backend.
type Transcriber interface {
	// Transcribe decodes req.Samples into a hypothesis. Returns an error
	// wrapping [ErrTranscription] on inference failure; ctx carries the
	// per-call deadline. A nil-error result is never nil.
	Transcribe(ctx context.Context, req Request) (*Hypothesis, error)
}
