// Package gate turns the continuous frame stream into discrete speech spans.
//
// The gate runs the per-utterance state machine Silence → Speaking → Silence:
// speech starts when OnsetFrames consecutive frames classify speech-positive,
// and ends once HangoverMs of consecutive non-speech has elapsed. The
// hangover tail is included in the emitted span so trailing consonants are
// not clipped, and a bounded pre-roll of recent frames is prepended so the
// syllables spoken before onset confirmation are not lost.
//
// The gate is the single owner of all of this state; downstream stages only
// ever see frozen [audio.SpeechSpan] values through the spans channel.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/provider/vad"
)

const (
	defaultOnsetFrames = 3
	defaultHangoverMs  = 400
	defaultPrerollMs   = 1000

	// fallbackRMSThreshold classifies a frame when the VAD session errors,
	// so a classifier fault never halts the gate.
	fallbackRMSThreshold = 0.01
)

// Config holds the gate's tuning knobs. All are exposed through the top-level
// configuration file rather than hard-coded; the defaults match a typical
// close-talk microphone.
type Config struct {
	// OnsetFrames is the number of consecutive speech-positive frames
	// required before an utterance starts. Default: 3.
	OnsetFrames int

	// HangoverMs is the consecutive non-speech duration that ends an
	// utterance. Default: 400 ms.
	HangoverMs int

	// PrerollMs bounds how much audio preceding onset confirmation is
	// prepended to the span. Default: 1000 ms.
	PrerollMs int
}

// withDefaults fills zero fields with the package defaults.
func (c Config) withDefaults() Config {
	if c.OnsetFrames <= 0 {
		c.OnsetFrames = defaultOnsetFrames
	}
	if c.HangoverMs <= 0 {
		c.HangoverMs = defaultHangoverMs
	}
	if c.PrerollMs <= 0 {
		c.PrerollMs = defaultPrerollMs
	}
	return c
}

// Gate accumulates frames into speech spans. Not safe for concurrent use;
// Run owns all mutable state on a single goroutine.
type Gate struct {
	cfg     Config
	session vad.SessionHandle

	seq uint64

	// preroll holds the most recent frames while in the Silence state,
	// bounded by PrerollMs.
	preroll   []audio.Frame
	prerollMs int
}

// New creates a Gate that classifies frames with session. The session's
// lifecycle belongs to the caller.
func New(session vad.SessionHandle, cfg Config) *Gate {
	return &Gate{cfg: cfg.withDefaults(), session: session}
}

// Run consumes frames and emits finalized spans until frames closes or ctx
// is cancelled. A span in progress when the stream ends is finalized and
// emitted before returning. The spans channel is closed on return.
func (g *Gate) Run(ctx context.Context, frames <-chan audio.Frame, spans chan<- audio.SpeechSpan) error {
	defer close(spans)

	var (
		speaking   bool
		onsetRun   int
		silenceMs  int
		span       []audio.Frame
		spanStart  time.Duration
		lastSpeech time.Duration
	)

	emit := func(end time.Duration) error {
		if len(span) == 0 {
			return nil
		}
		out := g.freeze(span, spanStart, end)
		span = nil
		select {
		case spans <- out:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		var frame audio.Frame
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok = <-frames:
			if !ok {
				if speaking {
					return emit(lastSpeech + time.Duration(g.cfg.HangoverMs)*time.Millisecond)
				}
				return nil
			}
		}

		speech := g.classify(frame)
		frameMs := int(frame.Duration() / time.Millisecond)

		if !speaking {
			g.pushPreroll(frame, frameMs)

			if speech {
				onsetRun++
			} else {
				onsetRun = 0
			}
			if onsetRun >= g.cfg.OnsetFrames {
				// Utterance confirmed: seed the span with the pre-roll,
				// which already contains the onset frames.
				speaking = true
				onsetRun = 0
				silenceMs = 0
				span = g.takePreroll()
				spanStart = span[0].Timestamp
				lastSpeech = frame.Timestamp
				slog.Debug("speech onset", "start", spanStart)
			}
			continue
		}

		// Speaking: every frame joins the span, including hangover silence.
		span = append(span, frame)
		if speech {
			silenceMs = 0
			lastSpeech = frame.Timestamp
			continue
		}

		silenceMs += frameMs
		if silenceMs >= g.cfg.HangoverMs {
			end := frame.Timestamp + frame.Duration()
			slog.Debug("speech offset", "end", end, "hangover_ms", silenceMs)
			if err := emit(end); err != nil {
				return err
			}
			speaking = false
			silenceMs = 0
		}
	}
}

// classify runs the VAD session on the frame, falling back to a plain RMS
// threshold when the classifier errors.
func (g *Gate) classify(frame audio.Frame) bool {
	d, err := g.session.Classify(frame.Samples)
	if err != nil {
		slog.Warn("vad classify failed, using energy fallback", "error", err)
		return audio.RMS(frame.Samples) >= fallbackRMSThreshold
	}
	return d.Speech
}

// pushPreroll appends a frame to the pre-roll, evicting the oldest frames
// once the buffered duration exceeds PrerollMs.
func (g *Gate) pushPreroll(frame audio.Frame, frameMs int) {
	g.preroll = append(g.preroll, frame)
	g.prerollMs += frameMs
	for g.prerollMs > g.cfg.PrerollMs && len(g.preroll) > 1 {
		evicted := g.preroll[0]
		g.preroll = g.preroll[1:]
		g.prerollMs -= int(evicted.Duration() / time.Millisecond)
	}
}

// takePreroll hands the buffered pre-roll to the new span and resets it.
func (g *Gate) takePreroll() []audio.Frame {
	out := g.preroll
	g.preroll = nil
	g.prerollMs = 0
	return out
}

// freeze concatenates the span frames into an immutable SpeechSpan and
// assigns the next sequence number.
func (g *Gate) freeze(frames []audio.Frame, start, end time.Duration) audio.SpeechSpan {
	total := 0
	for _, f := range frames {
		total += len(f.Samples)
	}
	samples := make([]float32, 0, total)
	for _, f := range frames {
		samples = append(samples, f.Samples...)
	}

	g.seq++
	span := audio.SpeechSpan{
		Seq:        g.seq,
		Samples:    samples,
		SampleRate: frames[0].SampleRate,
		Start:      start,
		End:        end,
	}
	slog.Debug("span finalized",
		"seq", span.Seq,
		"duration", span.Duration(),
		"samples", len(span.Samples),
	)
	return span
}

// String describes the configuration, used in startup logs.
func (c Config) String() string {
	c = c.withDefaults()
	return fmt.Sprintf("onset=%df hangover=%dms preroll=%dms", c.OnsetFrames, c.HangoverMs, c.PrerollMs)
}
