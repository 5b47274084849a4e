// This file contains the Transcriber implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

// Package whisper implements [asr.Transcriber] over the native whisper.cpp
// bindings. The model is loaded once at construction and shared across calls;
// each Transcribe creates a fresh whisper context because contexts are not
// reusable across inferences.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/codevox-dev/codevox/pkg/provider/asr"
)

const defaultLanguage = "en"

// Compile-time assertion that Transcriber satisfies asr.Transcriber.
var _ asr.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithLanguage sets the default ISO 639-1 language code used when a request
// does not carry one. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// Transcriber implements asr.Transcriber using the whisper.cpp Go bindings
// (CGO), keeping inference fully on-device. The model is loaded once and
// shared; contexts are created per inference.
type Transcriber struct {
	model    whisperlib.Model
	path     string
	language string
}

// New creates a Transcriber that loads the whisper model from modelPath.
// The caller must call Close when the transcriber is no longer needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:    model,
		path:     modelPath,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the whisper model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// ModelPath returns the path the model was loaded from, for logs and the
// history store.
func (t *Transcriber) ModelPath() string { return t.path }

// Transcribe implements [asr.Transcriber]. The bias prompt is injected as the
// whisper initial prompt, which conditions decoding toward the supplied
// vocabulary without retraining.
func (t *Transcriber) Transcribe(ctx context.Context, req asr.Request) (*asr.Hypothesis, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(req.Samples) == 0 {
		return &asr.Hypothesis{}, nil
	}

	lang := req.Language
	if lang == "" {
		lang = t.language
	}

	// Each context is NOT thread-safe and not reusable, but the model can
	// be shared across goroutines.
	wctx, err := t.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w: %w", asr.ErrTranscription, err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using model default", "language", lang, "error", err)
	}
	if req.BiasPrompt != "" {
		wctx.SetInitialPrompt(req.BiasPrompt)
	}

	var segmentCb whisperlib.SegmentCallback
	if req.OnPartial != nil {
		segmentCb = func(seg whisperlib.Segment) {
			if text := strings.TrimSpace(seg.Text); text != "" {
				req.OnPartial(text)
			}
		}
	}

	// Cooperative cancellation: whisper checks the encoder-begin callback
	// between windows, which is the closest thing to a safe checkpoint the
	// bindings expose.
	encoderBegin := func() bool { return ctx.Err() == nil }

	if err := wctx.Process(req.Samples, encoderBegin, segmentCb, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("whisper: process audio: %w: %w", asr.ErrTranscription, err)
	}

	hyp, err := collectSegments(wctx)
	if err != nil {
		return nil, err
	}
	return hyp, nil
}

// collectSegments drains the decoded segments into a Hypothesis, gathering
// per-token probabilities for the downstream quality gate.
func collectSegments(wctx whisperlib.Context) (*asr.Hypothesis, error) {
	var (
		parts   []string
		tokens  []asr.TokenDetail
		logpSum float64
	)

	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w: %w", asr.ErrTranscription, err)
		}

		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			tokens = append(tokens, asr.TokenDetail{Text: tok.Text, Prob: tok.P})
			logpSum += math.Log(math.Max(float64(tok.P), 1e-10))
		}
	}

	hyp := &asr.Hypothesis{
		Text:   strings.Join(parts, " "),
		Tokens: tokens,
	}
	if len(tokens) > 0 {
		hyp.AvgLogProb = logpSum / float64(len(tokens))
	}
	return hyp, nil
}
