package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codevox-dev/codevox/internal/gate"
	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/provider/vad"
	vadmock "github.com/codevox-dev/codevox/pkg/provider/vad/mock"
)

const frameMs = 20

// makeFrames returns n 20 ms frames at 16 kHz with the given amplitude,
// timestamped consecutively starting at start.
func makeFrames(n int, amplitude float32, start time.Duration) []audio.Frame {
	frames := make([]audio.Frame, n)
	for i := range frames {
		samples := make([]float32, 320)
		for j := range samples {
			samples[j] = amplitude
		}
		frames[i] = audio.Frame{
			Samples:    samples,
			SampleRate: 16000,
			Timestamp:  start + time.Duration(i)*frameMs*time.Millisecond,
		}
	}
	return frames
}

// runGate feeds frames through a gate with the scripted session and collects
// all emitted spans.
func runGate(t *testing.T, session vad.SessionHandle, cfg gate.Config, frames []audio.Frame) []audio.SpeechSpan {
	t.Helper()

	in := make(chan audio.Frame, len(frames))
	for _, f := range frames {
		in <- f
	}
	close(in)

	out := make(chan audio.SpeechSpan, 16)
	g := gate.New(session, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Run(ctx, in, out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var spans []audio.SpeechSpan
	for s := range out {
		spans = append(spans, s)
	}
	return spans
}

// scriptDecisions builds a session that answers speech/non-speech per entry.
func scriptDecisions(speech ...bool) *vadmock.Session {
	decisions := make([]vad.Decision, len(speech))
	for i, s := range speech {
		if s {
			decisions[i] = vad.Decision{Speech: true, Probability: 0.9}
		} else {
			decisions[i] = vad.Decision{Speech: false, Probability: 0.1}
		}
	}
	return &vadmock.Session{Decisions: decisions}
}

func TestSilenceEmitsNoSpans(t *testing.T) {
	t.Parallel()

	// 100 non-speech frames: the gate must stay in Silence the whole time.
	script := make([]bool, 100)
	spans := runGate(t, scriptDecisions(script...), gate.Config{}, makeFrames(100, 0.001, 0))

	if len(spans) != 0 {
		t.Fatalf("spans = %d, want 0", len(spans))
	}
}

func TestOnsetRequiresConsecutiveSpeechFrames(t *testing.T) {
	t.Parallel()

	// Alternating speech/silence never reaches 3 consecutive positives.
	script := make([]bool, 40)
	for i := range script {
		script[i] = i%2 == 0
	}
	spans := runGate(t, scriptDecisions(script...),
		gate.Config{OnsetFrames: 3, HangoverMs: 100}, makeFrames(40, 0.1, 0))

	if len(spans) != 0 {
		t.Fatalf("spans = %d, want 0 (onset never confirmed)", len(spans))
	}
}

func TestHangoverExtendsSpanEnd(t *testing.T) {
	t.Parallel()

	// 10 speech frames then 30 silence frames. With a 200 ms hangover the
	// span must end at least 200 ms after the last speech-positive frame.
	script := make([]bool, 40)
	for i := range 10 {
		script[i] = true
	}
	frames := makeFrames(40, 0.1, 0)
	spans := runGate(t, scriptDecisions(script...),
		gate.Config{OnsetFrames: 3, HangoverMs: 200}, frames)

	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}

	lastSpeech := frames[9].Timestamp
	wantEnd := lastSpeech + 200*time.Millisecond
	if spans[0].End < wantEnd {
		t.Errorf("span end = %v, want >= %v", spans[0].End, wantEnd)
	}
}

func TestPrerollIncludedInSpan(t *testing.T) {
	t.Parallel()

	// 20 silence frames, then speech. The span must begin before the first
	// speech-positive frame because the pre-roll is prepended.
	script := make([]bool, 40)
	for i := 20; i < 30; i++ {
		script[i] = true
	}
	frames := makeFrames(40, 0.1, 0)
	spans := runGate(t, scriptDecisions(script...),
		gate.Config{OnsetFrames: 3, HangoverMs: 100, PrerollMs: 200}, frames)

	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	firstSpeech := frames[20].Timestamp
	if spans[0].Start >= firstSpeech {
		t.Errorf("span start = %v, want < %v (pre-roll missing)", spans[0].Start, firstSpeech)
	}
	// But bounded: no more than PrerollMs before the first speech frame.
	if firstSpeech-spans[0].Start > 220*time.Millisecond {
		t.Errorf("span start = %v, pre-roll exceeds configured bound", spans[0].Start)
	}
}

func TestSequenceNumbersAreMonotonic(t *testing.T) {
	t.Parallel()

	// Two utterances separated by ample silence.
	var script []bool
	script = append(script, falseN(5)...)
	script = append(script, trueN(8)...)
	script = append(script, falseN(20)...)
	script = append(script, trueN(8)...)
	script = append(script, falseN(20)...)

	spans := runGate(t, scriptDecisions(script...),
		gate.Config{OnsetFrames: 3, HangoverMs: 100, PrerollMs: 100}, makeFrames(len(script), 0.1, 0))

	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Seq != 1 || spans[1].Seq != 2 {
		t.Errorf("seqs = %d, %d, want 1, 2", spans[0].Seq, spans[1].Seq)
	}
	if spans[1].Start <= spans[0].End {
		t.Errorf("second span start %v not after first span end %v", spans[1].Start, spans[0].End)
	}
}

func TestStreamEndFinalizesOpenSpan(t *testing.T) {
	t.Parallel()

	// Stream ends mid-utterance: the open span is still emitted.
	script := append(falseN(5), trueN(10)...)
	spans := runGate(t, scriptDecisions(script...),
		gate.Config{OnsetFrames: 3, HangoverMs: 300}, makeFrames(len(script), 0.1, 0))

	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
}

func TestClassifierErrorFallsBackToEnergy(t *testing.T) {
	t.Parallel()

	// The session always errors; loud frames must still open a span via the
	// RMS fallback, and quiet frames must close it.
	session := &vadmock.Session{ClassifyErr: errors.New("model exploded")}

	frames := makeFrames(10, 0.2, 0)
	frames = append(frames, makeFrames(30, 0.0001, 10*frameMs*time.Millisecond)...)

	spans := runGate(t, session, gate.Config{OnsetFrames: 3, HangoverMs: 100}, frames)
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1 (energy fallback should still gate)", len(spans))
	}
}

func falseN(n int) []bool { return make([]bool, n) }

func trueN(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
