// Package suppress implements the hallucination and silence gates applied to
// raw hypotheses before correction. Whisper-family models emit stock phrases
// on silence and degenerate repetition loops on noise; both are cheap to
// detect from the hypothesis itself rather than the audio.
package suppress

import (
	"bytes"
	"compress/flate"
	"strings"

	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/provider/asr"
)

const (
	// silenceRMS is the RMS level below which a span is treated as
	// containing no speech and never sent to the transcriber.
	silenceRMS = 0.005

	// logProbThreshold marks a hypothesis as unreliable when the mean
	// token log-probability falls below it.
	logProbThreshold = -1.0

	// compressionRatioThreshold flags degenerate repetition: text that
	// deflate shrinks by more than this factor is almost always a
	// hallucination loop, not speech.
	compressionRatioThreshold = 2.4
)

// artifactPhrases are transcripts whisper models produce on silence or music,
// matched after lowercasing and punctuation stripping.
var artifactPhrases = map[string]struct{}{
	"thanks for watching":                  {},
	"thank you for watching":               {},
	"thank you":                            {},
	"thanks":                               {},
	"bye":                                  {},
	"you":                                  {},
	"subscribe":                            {},
	"please subscribe to my channel":       {},
	"see you in the next video":            {},
	"see you next time":                    {},
	"transcribed by":                       {},
	"subtitles by the amara org community": {},
}

// IsSilence reports whether samples are quiet enough to skip decoding
// entirely.
func IsSilence(samples []float32) bool {
	return audio.RMS(samples) < silenceRMS
}

// Reason explains why a hypothesis was suppressed. Empty means not
// suppressed.
type Reason string

const (
	ReasonEmpty          Reason = "empty"
	ReasonArtifact       Reason = "artifact_phrase"
	ReasonLowConfidence  Reason = "low_confidence"
	ReasonRepetitionLoop Reason = "repetition_loop"
)

// Check inspects a hypothesis and returns a non-empty Reason when it should
// be dropped instead of delivered.
func Check(hyp *asr.Hypothesis) Reason {
	text := strings.TrimSpace(hyp.Text)
	if text == "" {
		return ReasonEmpty
	}
	if isArtifact(text) {
		return ReasonArtifact
	}
	if len(hyp.Tokens) > 0 && hyp.AvgLogProb < logProbThreshold {
		return ReasonLowConfidence
	}
	if CompressionRatio(text) > compressionRatioThreshold {
		return ReasonRepetitionLoop
	}
	return ""
}

func isArtifact(text string) bool {
	_, ok := artifactPhrases[normalizePhrase(text)]
	return ok
}

// normalizePhrase lowercases and strips punctuation so " Thanks for
// watching! " matches its canonical form.
func normalizePhrase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CompressionRatio returns len(text)/len(deflate(text)). Hallucinated
// repetition compresses far better than natural speech. Short strings return
// a ratio of 1 since deflate overhead dominates.
func CompressionRatio(text string) float64 {
	if len(text) < 16 {
		return 1.0
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return 1.0
	}
	if _, err := w.Write([]byte(text)); err != nil {
		return 1.0
	}
	if err := w.Close(); err != nil {
		return 1.0
	}
	if buf.Len() == 0 {
		return 1.0
	}
	return float64(len(text)) / float64(buf.Len())
}
