package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// State describes what the pipeline is currently doing. States are emitted to
// the sink so a frontend can show capture status.
type State string

const (
	// StateIdle means the pipeline is not capturing.
	StateIdle State = "idle"
	// StateListening means audio is being captured and gated.
	StateListening State = "listening"
	// StateUnavailable means the capture device is gone and the pipeline is
	// retrying with backoff.
	StateUnavailable State = "unavailable"
)

// Result is one finalized utterance, delivered strictly in utterance order.
type Result struct {
	// Seq is the utterance sequence number assigned at span close.
	Seq uint64
	// Text is the transcript to deliver. Empty when Suppressed.
	Text string
	// Raw is the uncorrected hypothesis, kept for history and debugging.
	Raw string
	// Corrected reports whether Text came from the semantic corrector.
	Corrected bool
	// Suppressed marks spans that produced no deliverable text.
	Suppressed bool
	// SuppressReason explains a suppression ("silence", "artifact_phrase", ...).
	SuppressReason string
	// Start and End locate the utterance on the capture timeline.
	Start, End time.Duration
	// Timing breaks down how long each stage spent on this utterance.
	Timing StageTiming
}

// StageTiming records per-stage wall-clock durations for one utterance.
// Stages that did not run (no denoiser, no corrector) stay zero.
type StageTiming struct {
	Denoise    time.Duration
	Transcribe time.Duration
	Correct    time.Duration
	Total      time.Duration
}

// Sink receives pipeline output. Implementations must be safe for concurrent
// use: partials arrive from the transcriber goroutine while states may be
// emitted from the supervisor.
type Sink interface {
	// EmitPartial delivers an intermediate transcript for the utterance
	// identified by seq. Partials are advisory and may be overwritten.
	EmitPartial(seq uint64, text string)

	// EmitResult delivers a finalized utterance. Calls arrive in strictly
	// increasing Seq order.
	EmitResult(res Result)

	// EmitState reports a pipeline state change.
	EmitState(state State)
}

// Compile-time assertion.
var _ Sink = (*WriterSink)(nil)

// WriterSink writes finalized transcripts to w, one line per utterance.
// Suppressed results are skipped. Partials and state changes are discarded.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a WriterSink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// EmitPartial implements Sink.
func (s *WriterSink) EmitPartial(uint64, string) {}

// EmitResult implements Sink.
func (s *WriterSink) EmitResult(res Result) {
	if res.Suppressed || res.Text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, res.Text)
}

// EmitState implements Sink.
func (s *WriterSink) EmitState(State) {}
