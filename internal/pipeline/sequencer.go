package pipeline

import "sync"

// sequencer reorders results back into utterance order before they reach the
// sink. Decodes can finish out of order when a short utterance overtakes a
// long one in the worker pool; delivery order must still match speech order.
type sequencer struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]Result
	sink    Sink
}

// newSequencer returns a sequencer that expects first as the initial sequence
// number and forwards in-order results to sink.
func newSequencer(first uint64, sink Sink) *sequencer {
	return &sequencer{
		next:    first,
		pending: make(map[uint64]Result),
		sink:    sink,
	}
}

// deliver buffers res and flushes every consecutively-numbered result that is
// now ready. The sink is invoked outside any per-result goroutine but inside
// the sequencer lock, so sink implementations should return quickly.
func (q *sequencer) deliver(res Result) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending[res.Seq] = res
	for {
		r, ok := q.pending[q.next]
		if !ok {
			return
		}
		delete(q.pending, q.next)
		q.next++
		q.sink.EmitResult(r)
	}
}

// backlog reports how many results are waiting on an earlier sequence number.
func (q *sequencer) backlog() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
