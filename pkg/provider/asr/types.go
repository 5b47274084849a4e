package asr

// Request carries one speech span's audio plus the decode conditioning for a
// single Transcribe call. The bias prompt is read-only once attached.
type Request struct {
	// Samples is mono float32 PCM at SampleRate.
	Samples []float32

	// SampleRate in Hz. Whisper models require 16000.
	SampleRate int

	// BiasPrompt is the bounded vocabulary prompt built from the context
	// indexer's ranked identifiers. Conditions decoding toward domain
	// jargon. May be empty.
	BiasPrompt string

	// Language is the ISO 639-1 code for decoding (e.g., "en"). Empty lets
	// the provider use its configured default.
	Language string

	// OnPartial, when non-nil, receives incremental segment text while
	// decoding runs. Calls happen on the decoding goroutine; the callback
	// must return quickly and must not treat partial text as final.
	OnPartial func(text string)
}

// TokenDetail holds per-token metadata from backends that expose it.
type TokenDetail struct {
	// Text is the token's surface form.
	Text string

	// Prob is the token probability (0.0–1.0).
	Prob float32
}

// Hypothesis is the raw transcription result for exactly one speech span.
// It is consumed once by the semantic corrector.
type Hypothesis struct {
	// Text is the concatenated transcript, whitespace-trimmed.
	Text string

	// Tokens contains per-token detail when the backend provides it.
	// May be nil.
	Tokens []TokenDetail

	// AvgLogProb is the mean log probability across tokens, used by the
	// hallucination quality gate. Zero when Tokens is nil.
	AvgLogProb float64
}
