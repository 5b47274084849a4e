// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector (an energy heuristic, a
// WebRTC-style classifier, or a small neural model) and surfaces it as a
// stateful session. A session maintains its own internal state (noise-floor
// estimate, smoothing history) so its classification of a frame can depend on
// what came before it.
//
// VAD is synchronous by design: Classify returns immediately with a detection
// result, making it suitable for the low-latency path that gates transcription
// input. A classifier failure on a single frame is non-fatal — the gate falls
// back to a plain energy threshold for that frame.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// frames passed to Classify.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	// Classify returns an error if the supplied frame does not match this size.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame is classified as
	// speech. Range: [0.0, 1.0]. Higher values reduce false positives at the
	// cost of increased onset latency. Typical: 0.5.
	SpeechThreshold float64

	// SilenceThreshold is the probability below which a frame is classified
	// as silence. Range: [0.0, 1.0]. Must be ≤ SpeechThreshold. Typical: 0.35.
	SilenceThreshold float64
}

// SessionHandle represents an active VAD session for a single audio stream.
// It is an interface so that test code can supply mock implementations
// without a live engine. Reset clears detection state without closing the
// session.
//
// A SessionHandle should not be shared between goroutines.
type SessionHandle interface {
	// Classify analyses a single frame of mono float32 PCM and returns the
	// detection result. It is called synchronously in the gate loop and must
	// not block. Returns an error if the frame size is wrong or the engine
	// hits an internal failure; the caller treats such errors as non-fatal.
	Classify(frame []float32) (Decision, error)

	// Reset clears accumulated detection state (noise floor, counters)
	// without closing the session. Use when the audio stream restarts.
	Reset()

	// Close releases session resources. Calling Close more than once is safe
	// and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	// Returns an error if the configuration is invalid.
	NewSession(cfg Config) (SessionHandle, error)
}
