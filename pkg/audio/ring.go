package audio

import "sync/atomic"

// Ring is a bounded single-producer/single-consumer ring buffer of float32
// samples. It decouples the capture callback (writer) from the frame-producing
// goroutine (reader) without locks: head is advanced only by the reader, tail
// only by the writer, both with atomic loads/stores, so neither side ever
// observes a torn index. The writer never stores into a cell the reader may
// still be copying from: when the buffer is full, incoming samples are
// dropped and reported to the caller.
type Ring struct {
	buf  []float32
	mask uint64
	head atomic.Uint64 // read position, owned by the consumer
	tail atomic.Uint64 // write position, owned by the producer
}

// NewRing creates a Ring holding at least capacity samples. The actual
// capacity is rounded up to the next power of two.
func NewRing(capacity int) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	size := 2
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		buf:  make([]float32, size),
		mask: uint64(size - 1),
	}
}

// Cap returns the ring's sample capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of unread samples.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Write appends samples and returns how many were dropped because the buffer
// was full. Must be called from a single producer goroutine only.
func (r *Ring) Write(samples []float32) int {
	tail := r.tail.Load()
	free := uint64(len(r.buf)) - (tail - r.head.Load())
	n := uint64(len(samples))
	var dropped int
	if n > free {
		dropped = int(n - free)
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(tail+i)&r.mask] = samples[i]
	}
	r.tail.Store(tail + n)
	return dropped
}

// Read copies up to len(dst) unread samples into dst and returns the count.
// Must be called from a single consumer goroutine only.
func (r *Ring) Read(dst []float32) int {
	head := r.head.Load()
	avail := r.tail.Load() - head
	if avail == 0 {
		return 0
	}
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(head+i)&r.mask]
	}
	r.head.Store(head + n)
	return int(n)
}
