// Package denoise defines the Suppressor interface for noise-suppression
// backends.
//
// A suppressor is a strict transformation: the enhanced output must contain
// exactly as many samples as the input so downstream timing is unaffected.
// Suppression is best-effort by contract — the pipeline falls through to the
// unenhanced span when a suppressor fails or exceeds its deadline, so
// implementations should prefer returning an error over degrading audio.
package denoise

import "context"

// Suppressor enhances a block of speech audio in place of background noise.
//
// Implementations must be safe for concurrent use and must respect ctx
// cancellation; the pipeline wraps each call in a deadline.
type Suppressor interface {
	// Process returns an enhanced copy of samples with background noise
	// attenuated. The returned slice must have the same length as the
	// input. The input must not be mutated.
	Process(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
}
