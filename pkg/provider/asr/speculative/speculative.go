// Package speculative implements a two-tier transcriber: a small, fast draft
// model produces the hypothesis that is returned immediately, while a larger
// model re-decodes the same audio in the background. When the verifier
// disagrees, the corrected hypothesis is surfaced through a callback so the
// caller can amend already-delivered text. The draft path is never delayed by
// verification.
package speculative

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codevox-dev/codevox/pkg/provider/asr"
)

const defaultVerifyTimeout = 30 * time.Second

// Compile-time assertion that Transcriber satisfies asr.Transcriber.
var _ asr.Transcriber = (*Transcriber)(nil)

// Verification carries the outcome of a background re-decode.
type Verification struct {
	// Draft is the hypothesis that was delivered immediately.
	Draft *asr.Hypothesis
	// Verified is the larger model's hypothesis for the same audio.
	Verified *asr.Hypothesis
	// Agrees reports whether the two transcripts match after whitespace
	// and case normalization.
	Agrees bool
}

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithVerifyTimeout bounds each background verification decode.
// Defaults to 30s.
func WithVerifyTimeout(d time.Duration) Option {
	return func(t *Transcriber) { t.verifyTimeout = d }
}

// WithOnVerified registers a callback invoked after every completed
// background verification. The callback runs on the verifier goroutine.
// Without a callback, disagreements are still logged.
func WithOnVerified(fn func(Verification)) Option {
	return func(t *Transcriber) { t.onVerified = fn }
}

// Transcriber decodes with a draft model and verifies with a larger one.
type Transcriber struct {
	draft    asr.Transcriber
	verifier asr.Transcriber

	verifyTimeout time.Duration
	onVerified    func(Verification)

	wg sync.WaitGroup
}

// New creates a speculative transcriber. verifier may be nil, in which case
// the draft hypothesis is final and no background work is scheduled.
func New(draft, verifier asr.Transcriber, opts ...Option) *Transcriber {
	t := &Transcriber{
		draft:         draft,
		verifier:      verifier,
		verifyTimeout: defaultVerifyTimeout,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transcribe implements [asr.Transcriber]. It returns the draft model's
// hypothesis as soon as it is available and, when a verifier is configured,
// schedules a background re-decode of the same audio.
func (t *Transcriber) Transcribe(ctx context.Context, req asr.Request) (*asr.Hypothesis, error) {
	hyp, err := t.draft.Transcribe(ctx, req)
	if err != nil {
		return nil, err
	}

	if t.verifier != nil && len(req.Samples) > 0 {
		t.scheduleVerify(req, hyp)
	}
	return hyp, nil
}

// Wait blocks until all in-flight verifications have completed. Intended for
// shutdown and tests.
func (t *Transcriber) Wait() {
	t.wg.Wait()
}

func (t *Transcriber) scheduleVerify(req asr.Request, draft *asr.Hypothesis) {
	// The verifier owns its own deadline: it must outlive the caller's
	// context, which is typically scoped to the draft decode.
	verifyReq := asr.Request{
		Samples:    req.Samples,
		SampleRate: req.SampleRate,
		BiasPrompt: req.BiasPrompt,
		Language:   req.Language,
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.verifyTimeout)
		defer cancel()

		verified, err := t.verifier.Transcribe(ctx, verifyReq)
		if err != nil {
			slog.Warn("speculative: verification decode failed, keeping draft", "error", err)
			return
		}

		v := Verification{
			Draft:    draft,
			Verified: verified,
			Agrees:   normalize(draft.Text) == normalize(verified.Text),
		}
		if !v.Agrees {
			slog.Info("speculative: verifier disagrees with draft",
				"draft", draft.Text, "verified", verified.Text)
		}
		if t.onVerified != nil {
			t.onVerified(v)
		}
	}()
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
