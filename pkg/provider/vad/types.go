package vad

// Decision is the classification result for a single audio frame.
type Decision struct {
	// Speech reports whether the frame crossed the speech threshold.
	Speech bool

	// Probability is the speech probability score (0.0–1.0).
	Probability float64
}
