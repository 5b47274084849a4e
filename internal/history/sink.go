package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/codevox-dev/codevox/internal/pipeline"
)

// Sink wraps another pipeline sink and records every delivered utterance in
// the store. A storage failure is logged and never blocks delivery.
type Sink struct {
	inner pipeline.Sink
	store *Store
	model string
}

// Compile-time assertion.
var _ pipeline.Sink = (*Sink)(nil)

// NewSink wraps inner so finalized results are also appended to store. model
// labels the entries with the transcriber model in use.
func NewSink(inner pipeline.Sink, store *Store, model string) *Sink {
	return &Sink{inner: inner, store: store, model: model}
}

// EmitPartial implements pipeline.Sink. Partials are not persisted.
func (s *Sink) EmitPartial(seq uint64, text string) {
	s.inner.EmitPartial(seq, text)
}

// EmitResult implements pipeline.Sink.
func (s *Sink) EmitResult(res pipeline.Result) {
	s.inner.EmitResult(res)

	if res.Suppressed || res.Text == "" {
		return
	}
	err := s.store.Append(context.Background(), Entry{
		RawText:    res.Raw,
		FinalText:  res.Text,
		Corrected:  res.Corrected,
		Model:      s.model,
		DurationMs: int64((res.End - res.Start) / time.Millisecond),
	})
	if err != nil {
		slog.Warn("history append failed", "seq", res.Seq, "error", err)
	}
}

// EmitState implements pipeline.Sink.
func (s *Sink) EmitState(state pipeline.State) {
	s.inner.EmitState(state)
}
