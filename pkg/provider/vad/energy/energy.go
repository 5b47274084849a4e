// Package energy implements the [vad.Engine] interface with an adaptive
// energy classifier. The session tracks a noise-floor estimate via an
// exponential moving average of non-speech frame energy; a frame's speech
// probability is derived from the ratio of its RMS to that floor. The
// classifier has near-zero cost per frame and no model dependency, which is
// what lets the gate run continuously regardless of downstream load.
package energy

import (
	"errors"
	"fmt"
	"math"

	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/provider/vad"
)

const (
	// initialFloor seeds the noise-floor estimate before any frames arrive.
	// Roughly -50 dBFS, a quiet room on a typical laptop microphone.
	initialFloor = 0.003

	// floorAlpha is the EMA coefficient for noise-floor adaptation. Small so
	// the floor follows slow ambience changes but not speech itself.
	floorAlpha = 0.05

	// minFloor keeps the floor from collapsing to zero in digital silence,
	// which would make any nonzero sample register as speech.
	minFloor = 1e-4

	// ratioKnee is the RMS/floor ratio mapped to probability 0.5.
	ratioKnee = 4.0

	// defaultSpeechThreshold is used when the config leaves the speech
	// threshold at zero.
	defaultSpeechThreshold = 0.6

	// silenceRatio derives the default silence threshold from the speech
	// threshold, keeping the hysteresis band proportional.
	silenceRatio = 2.0 / 3.0
)

// Engine implements [vad.Engine].
type Engine struct{}

// Compile-time interface assertion.
var _ vad.Engine = (*Engine)(nil)

// New returns a new adaptive energy VAD engine.
func New() *Engine { return &Engine{} }

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("energy: sample rate must be positive")
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, errors.New("energy: frame size must be positive")
	}
	if cfg.SpeechThreshold < 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy: speech threshold %.2f out of range [0, 1]", cfg.SpeechThreshold)
	}
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = defaultSpeechThreshold
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = cfg.SpeechThreshold * silenceRatio
	}
	if cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy: silence threshold %.2f exceeds speech threshold %.2f",
			cfg.SilenceThreshold, cfg.SpeechThreshold)
	}

	return &session{
		cfg:        cfg,
		frameLen:   cfg.SampleRate * cfg.FrameSizeMs / 1000,
		noiseFloor: initialFloor,
	}, nil
}

// session holds the per-stream adaptive state. Not safe for concurrent use;
// the gate owns it from a single goroutine.
type session struct {
	cfg      vad.Config
	frameLen int

	noiseFloor float64
	closed     bool
}

// Compile-time interface assertion.
var _ vad.SessionHandle = (*session)(nil)

// Classify implements [vad.SessionHandle].
func (s *session) Classify(frame []float32) (vad.Decision, error) {
	if s.closed {
		return vad.Decision{}, errors.New("energy: session is closed")
	}
	if len(frame) != s.frameLen {
		return vad.Decision{}, fmt.Errorf("energy: frame has %d samples, want %d", len(frame), s.frameLen)
	}

	rms := audio.RMS(frame)
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		return vad.Decision{}, errors.New("energy: non-finite sample energy")
	}

	prob := s.probability(rms)
	speech := prob >= s.cfg.SpeechThreshold

	// Adapt the floor only on frames that stayed below the silence
	// threshold, so speech energy never drags the floor upward.
	if prob <= s.cfg.SilenceThreshold {
		s.noiseFloor = (1-floorAlpha)*s.noiseFloor + floorAlpha*rms
		if s.noiseFloor < minFloor {
			s.noiseFloor = minFloor
		}
	}

	return vad.Decision{Speech: speech, Probability: prob}, nil
}

// probability maps the RMS-to-floor ratio onto [0, 1] with a logistic curve
// centred at ratioKnee. A frame at the floor scores near 0; a frame at four
// times the floor scores 0.5; loud speech saturates toward 1.
func (s *session) probability(rms float64) float64 {
	ratio := rms / s.noiseFloor
	return 1 / (1 + math.Exp(-(ratio-ratioKnee)))
}

// Reset implements [vad.SessionHandle].
func (s *session) Reset() {
	s.noiseFloor = initialFloor
}

// Close implements [vad.SessionHandle].
func (s *session) Close() error {
	s.closed = true
	return nil
}
