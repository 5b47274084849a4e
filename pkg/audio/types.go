package audio

import "time"

// DefaultSampleRate is the canonical pipeline sample rate in Hz. All frames
// emitted by a Source are resampled to this rate before they reach the gate.
const DefaultSampleRate = 16000

// Frame represents a fixed-duration block of mono PCM samples flowing through
// the pipeline. Frames are the atomic unit of audio transport — captured from
// the input device, classified by the VAD, and accumulated into speech spans.
// A Frame is immutable once produced; ownership transfers to the consumer.
type Frame struct {
	// Samples is mono float32 PCM in the range [-1.0, 1.0].
	Samples []float32

	// SampleRate in Hz. Sources resample to the canonical pipeline rate
	// (16000 for whisper) before emitting.
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// SpeechSpan is a contiguous run of speech audio bounded by a detected onset
// and offset, including the pre-roll lead-in and the hangover tail. Spans are
// mutable only while the gate is accumulating them; once emitted they are
// frozen and owned exclusively by the stage currently processing them.
type SpeechSpan struct {
	// Seq is the monotonic finalization order assigned by the gate. Results
	// are delivered to the sink in Seq order.
	Seq uint64

	// Samples is the mono float32 PCM of the whole span.
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Start and End bound the span in stream time, hangover included.
	Start time.Duration
	End   time.Duration
}

// Duration returns the wall-clock length of the span.
func (s SpeechSpan) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}
