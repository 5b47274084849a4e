package audio

import "errors"

// ErrDeviceUnavailable is returned by Source constructors and surfaced through
// Frames() channel closure when the capture device cannot be opened or
// disconnects mid-stream. The pipeline reacts by entering its Unavailable
// state and retrying with backoff.
var ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

// Source produces a lazy, non-restartable stream of Frames at the canonical
// pipeline rate. The stream ends (channel closes) only on Close or on an
// unrecoverable device failure; call Err afterwards to distinguish the two.
//
// Implementations must not block the consumer beyond frame-production latency
// and must be safe to Close from a goroutine other than the consumer.
type Source interface {
	// Frames returns the frame stream. The channel is closed when the source
	// stops, either via Close or because the device failed.
	Frames() <-chan Frame

	// Err reports the failure that terminated the stream, or nil after a
	// clean Close. Valid only after the Frames channel has closed.
	Err() error

	// Close stops capture and releases the device. Calling Close more than
	// once is safe and returns nil.
	Close() error
}
