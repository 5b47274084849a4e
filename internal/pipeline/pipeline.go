// Package pipeline wires the capture-to-text stages together: audio frames
// flow through the voice-activity gate, closed speech spans are denoised,
// transcribed with a context-biased prompt, semantically corrected, and
// delivered to the sink in strict utterance order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codevox-dev/codevox/internal/bias"
	"github.com/codevox-dev/codevox/internal/contextindex"
	"github.com/codevox-dev/codevox/internal/correct"
	"github.com/codevox-dev/codevox/internal/gate"
	"github.com/codevox-dev/codevox/internal/observe"
	"github.com/codevox-dev/codevox/internal/suppress"
	"github.com/codevox-dev/codevox/pkg/audio"
	"github.com/codevox-dev/codevox/pkg/provider/asr"
	"github.com/codevox-dev/codevox/pkg/provider/denoise"
)

const (
	defaultQueueSize         = 8
	defaultWorkers           = 2
	defaultDenoiseTimeout    = 2 * time.Second
	defaultTranscribeTimeout = 30 * time.Second
	defaultCorrectTimeout    = 15 * time.Second

	// Device reopen backoff bounds.
	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

// Config tunes pipeline behavior. Zero values are replaced with defaults.
type Config struct {
	// QueueSize bounds the number of speech spans waiting for a decode slot.
	QueueSize int

	// Workers is the number of span-processing goroutines. Two is enough to
	// overlap transcription of one utterance with correction of the
	// previous; the single-flight semaphores prevent model-level
	// oversubscription regardless of this value.
	Workers int

	// DenoiseTimeout bounds one suppression pass. A suppressor that exceeds
	// it is abandoned and the span proceeds with raw audio.
	DenoiseTimeout time.Duration

	// TranscribeTimeout bounds one acoustic decode.
	TranscribeTimeout time.Duration

	// CorrectTimeout bounds one correction round trip.
	CorrectTimeout time.Duration

	// Language is the ISO 639-1 language passed to the transcriber.
	Language string
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.DenoiseTimeout <= 0 {
		c.DenoiseTimeout = defaultDenoiseTimeout
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = defaultTranscribeTimeout
	}
	if c.CorrectTimeout <= 0 {
		c.CorrectTimeout = defaultCorrectTimeout
	}
	return c
}

// Deps carries the pipeline's collaborators. OpenSource, Gate, Transcriber,
// and Sink are required; the rest degrade gracefully when nil.
type Deps struct {
	// OpenSource opens (or reopens) the audio source. Called again after a
	// device failure.
	OpenSource func(ctx context.Context) (audio.Source, error)

	// Gate turns the frame stream into speech spans. Its sequence counter
	// persists across device reopens, keeping delivery order global.
	Gate *gate.Gate

	// Denoiser cleans span audio before decoding. Optional.
	Denoiser denoise.Suppressor

	// Transcriber produces raw hypotheses.
	Transcriber asr.Transcriber

	// Corrector rewrites hypotheses into intended text. Optional.
	Corrector *correct.Corrector

	// Indexer supplies the editing-context snapshot per utterance. Optional.
	Indexer contextindex.Indexer

	// Bias builds the transcriber's initial prompt from the snapshot.
	// Optional.
	Bias *bias.Builder

	// Sink receives partials, results, and state changes.
	Sink Sink

	// Metrics records pipeline telemetry. Nil uses observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Pipeline orchestrates capture, gating, decoding, and correction.
type Pipeline struct {
	cfg  Config
	deps Deps

	seq *sequencer

	// Single-flight guards: one decode and one correction in flight at a
	// time, so a long utterance cannot starve the models it shares with the
	// next one.
	asrSem *semaphore.Weighted
	llmSem *semaphore.Weighted
}

// New validates deps and returns a runnable Pipeline.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.OpenSource == nil {
		return nil, errors.New("pipeline: OpenSource is required")
	}
	if deps.Gate == nil {
		return nil, errors.New("pipeline: Gate is required")
	}
	if deps.Transcriber == nil {
		return nil, errors.New("pipeline: Transcriber is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("pipeline: Sink is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}

	return &Pipeline{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		seq:    newSequencer(1, deps.Sink),
		asrSem: semaphore.NewWeighted(1),
		llmSem: semaphore.NewWeighted(1),
	}, nil
}

// Run captures and processes audio until ctx is cancelled or the source ends.
// A source that ends cleanly (a WAV replay reaching EOF) finishes the run;
// device failures trigger reopen with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.deps.Sink.EmitState(StateIdle)

	delay := retryBaseDelay
	for {
		src, err := p.deps.OpenSource(ctx)
		if err != nil {
			if !errors.Is(err, audio.ErrDeviceUnavailable) {
				return fmt.Errorf("pipeline: open source: %w", err)
			}
			p.deps.Sink.EmitState(StateUnavailable)
			slog.Warn("capture device unavailable, retrying", "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, retryMaxDelay)
			continue
		}
		delay = retryBaseDelay

		p.deps.Sink.EmitState(StateListening)
		err = p.runSession(ctx, src)
		closeErr := src.Close()

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, audio.ErrDeviceUnavailable):
			p.deps.Sink.EmitState(StateUnavailable)
			slog.Warn("capture device lost, reopening", "error", err)
			continue
		case err != nil:
			return err
		case closeErr != nil:
			slog.Warn("source close failed", "error", closeErr)
			return nil
		default:
			// Source drained cleanly.
			return nil
		}
	}
}

// runSession processes one source lifetime: gate the frames, fan spans out to
// workers, and wait for all stages to settle.
func (p *Pipeline) runSession(ctx context.Context, src audio.Source) error {
	gated := make(chan audio.SpeechSpan, 1)
	spans := make(chan audio.SpeechSpan, p.cfg.QueueSize)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return p.deps.Gate.Run(ctx, src.Frames(), gated)
	})

	// Forwarder tracks queue depth between the gate and the workers.
	eg.Go(func() error {
		defer close(spans)
		for span := range gated {
			p.deps.Metrics.QueueDepth.Add(ctx, 1)
			select {
			case spans <- span:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < p.cfg.Workers; i++ {
		eg.Go(func() error {
			for span := range spans {
				p.deps.Metrics.QueueDepth.Add(ctx, -1)
				p.processSpan(ctx, span)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	return src.Err()
}

// processSpan runs one speech span through suppression, denoising,
// transcription, and correction, then hands the result to the sequencer.
// Every span produces exactly one Result so delivery order never stalls.
func (p *Pipeline) processSpan(ctx context.Context, span audio.SpeechSpan) {
	started := time.Now()

	if suppress.IsSilence(span.Samples) {
		p.suppressSpan(ctx, span, "silence")
		return
	}

	var timing StageTiming

	stage := time.Now()
	samples := p.denoiseSpan(ctx, span)
	if p.deps.Denoiser != nil {
		timing.Denoise = time.Since(stage)
	}

	snap := p.captureSnapshot(ctx)

	var biasPrompt string
	if p.deps.Bias != nil {
		biasPrompt = p.deps.Bias.Build(snap)
	}

	stage = time.Now()
	hyp, err := p.transcribeSpan(ctx, span, samples, biasPrompt)
	timing.Transcribe = time.Since(stage)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: still release the sequence slot.
			p.suppressSpan(ctx, span, "cancelled")
			return
		}
		slog.Error("transcription failed", "seq", span.Seq, "error", err)
		p.deps.Metrics.RecordProviderError(ctx, "asr", "transcribe")
		p.suppressSpan(ctx, span, "error")
		return
	}

	if reason := suppress.Check(hyp); reason != "" {
		p.deps.Metrics.RecordSuppressed(ctx, string(reason))
		p.suppressSpan(ctx, span, string(reason))
		return
	}

	stage = time.Now()
	text, corrected := p.correctSpan(ctx, hyp, snap, span.Seq)
	if p.deps.Corrector != nil {
		timing.Correct = time.Since(stage)
	}
	timing.Total = time.Since(started)

	p.deps.Metrics.RecordSpan(ctx, "delivered")
	p.deps.Metrics.UtteranceDuration.Record(ctx, timing.Total.Seconds())
	p.seq.deliver(Result{
		Seq:       span.Seq,
		Text:      text,
		Raw:       hyp.Text,
		Corrected: corrected,
		Start:     span.Start,
		End:       span.End,
		Timing:    timing,
	})
}

func (p *Pipeline) suppressSpan(ctx context.Context, span audio.SpeechSpan, reason string) {
	p.deps.Metrics.RecordSpan(ctx, "suppressed")
	p.seq.deliver(Result{
		Seq:            span.Seq,
		Suppressed:     true,
		SuppressReason: reason,
		Start:          span.Start,
		End:            span.End,
	})
}

func (p *Pipeline) denoiseSpan(ctx context.Context, span audio.SpeechSpan) []float32 {
	if p.deps.Denoiser == nil {
		return span.Samples
	}
	dctx, cancel := context.WithTimeout(ctx, p.cfg.DenoiseTimeout)
	defer cancel()

	started := time.Now()
	cleaned, err := p.deps.Denoiser.Process(dctx, span.Samples, span.SampleRate)
	if err != nil {
		slog.Warn("noise suppression failed, using raw audio", "seq", span.Seq, "error", err)
		p.deps.Metrics.RecordProviderError(ctx, "denoise", "process")
		return span.Samples
	}
	p.deps.Metrics.DenoiseDuration.Record(ctx, time.Since(started).Seconds())
	return cleaned
}

func (p *Pipeline) captureSnapshot(ctx context.Context) contextindex.Snapshot {
	if p.deps.Indexer == nil {
		return contextindex.Snapshot{}
	}
	snap, err := p.deps.Indexer.Capture(ctx)
	if err != nil {
		slog.Debug("context capture failed", "error", err)
		return contextindex.Snapshot{}
	}
	return snap
}

func (p *Pipeline) transcribeSpan(ctx context.Context, span audio.SpeechSpan, samples []float32, biasPrompt string) (*asr.Hypothesis, error) {
	if err := p.asrSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.asrSem.Release(1)

	tctx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()

	started := time.Now()
	hyp, err := p.deps.Transcriber.Transcribe(tctx, asr.Request{
		Samples:    samples,
		SampleRate: span.SampleRate,
		BiasPrompt: biasPrompt,
		Language:   p.cfg.Language,
		OnPartial: func(text string) {
			p.deps.Sink.EmitPartial(span.Seq, text)
		},
	})
	if err != nil {
		return nil, err
	}
	p.deps.Metrics.TranscribeDuration.Record(ctx, time.Since(started).Seconds())
	return hyp, nil
}

// correctSpan returns the deliverable text for hyp and whether correction was
// applied. Correction failures degrade to the raw transcript.
func (p *Pipeline) correctSpan(ctx context.Context, hyp *asr.Hypothesis, snap contextindex.Snapshot, seq uint64) (string, bool) {
	if p.deps.Corrector == nil {
		return hyp.Text, false
	}

	if err := p.llmSem.Acquire(ctx, 1); err != nil {
		return hyp.Text, false
	}
	defer p.llmSem.Release(1)

	// The timeout is anchored here, not at span close: an in-flight
	// correction keeps its full budget even when newer utterances queue up
	// behind it.
	cctx, cancel := context.WithTimeout(ctx, p.cfg.CorrectTimeout)
	defer cancel()

	started := time.Now()
	res, err := p.deps.Corrector.Correct(cctx, hyp, snap)
	p.deps.Metrics.CorrectDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		slog.Warn("correction failed, delivering raw transcript", "seq", seq, "error", err)
		p.deps.Metrics.RecordCorrectionFallback(ctx, "provider_error")
		p.deps.Metrics.RecordProviderError(ctx, "llm", "correct")
		return hyp.Text, false
	}
	if !res.Applied {
		p.deps.Metrics.RecordCorrectionFallback(ctx, "rejected")
		return res.Text, false
	}
	return res.Text, true
}
