package pipeline

import (
	"sync"
	"testing"
	"time"
)

// captureSink records emitted results for order assertions.
type captureSink struct {
	mu      sync.Mutex
	results []Result
}

func (s *captureSink) EmitPartial(uint64, string) {}
func (s *captureSink) EmitState(State)            {}

func (s *captureSink) EmitResult(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

func (s *captureSink) seqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.results))
	for i, r := range s.results {
		out[i] = r.Seq
	}
	return out
}

func TestSequencerReordersOutOfOrderResults(t *testing.T) {
	sink := &captureSink{}
	q := newSequencer(1, sink)

	q.deliver(Result{Seq: 2, Text: "second"})
	q.deliver(Result{Seq: 3, Text: "third"})

	if got := sink.seqs(); len(got) != 0 {
		t.Fatalf("expected no emissions before seq 1 arrives, got %v", got)
	}
	if q.backlog() != 2 {
		t.Errorf("expected backlog of 2, got %d", q.backlog())
	}

	q.deliver(Result{Seq: 1, Text: "first"})

	got := sink.seqs()
	want := []uint64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d emissions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("emission %d: expected seq %d, got %d", i, want[i], got[i])
		}
	}
	if q.backlog() != 0 {
		t.Errorf("expected empty backlog after flush, got %d", q.backlog())
	}
}

func TestSequencerHoldsAcrossGaps(t *testing.T) {
	sink := &captureSink{}
	q := newSequencer(1, sink)

	q.deliver(Result{Seq: 1})
	q.deliver(Result{Seq: 3})

	if got := sink.seqs(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected only seq 1 emitted, got %v", got)
	}

	q.deliver(Result{Seq: 2})

	if got := sink.seqs(); len(got) != 3 {
		t.Fatalf("expected 3 emissions after gap filled, got %v", got)
	}
}

func TestSequencerForwardsSuppressedResults(t *testing.T) {
	sink := &captureSink{}
	q := newSequencer(1, sink)

	q.deliver(Result{Seq: 1, Suppressed: true, SuppressReason: "silence"})
	q.deliver(Result{Seq: 2, Text: "hello", Start: time.Second, End: 2 * time.Second})

	got := sink.seqs()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected suppressed result to hold its slot, got %v", got)
	}
	if !sink.results[0].Suppressed {
		t.Error("expected first result to carry the suppression flag")
	}
}
