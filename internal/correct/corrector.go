// Package correct implements the semantic correction stage: the raw
// hypothesis from the transcriber is rewritten into the text the speaker
// intended to type, using a language model steered by the current editing
// context.
//
// This stage is strictly best-effort. When the model is unreachable, times
// out, or returns something that fails validation, the raw transcript is
// delivered verbatim — a wrong-but-visible transcript beats a lost utterance.
package correct

import (
	"context"
	"fmt"
	"strings"

	"github.com/codevox-dev/codevox/internal/contextindex"
	"github.com/codevox-dev/codevox/internal/resilience"
	"github.com/codevox-dev/codevox/pkg/provider/asr"
	"github.com/codevox-dev/codevox/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 512
)

// Result is the outcome of a correction attempt. Text is always safe to
// deliver; when Applied is false it equals Raw.
type Result struct {
	// Text is the transcript to deliver.
	Text string
	// Raw is the uncorrected hypothesis text.
	Raw string
	// Applied reports whether Text came from the language model.
	Applied bool
	// Hints lists the phonetic identifier alignments fed to the model.
	Hints []Hint
}

// Hint records one phonetic alignment between a spoken phrase and a
// workspace identifier.
type Hint struct {
	Spoken     string
	Identifier string
	Score      float64
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithTemperature sets the LLM sampling temperature. Lower values keep
// corrections deterministic. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(c *Corrector) {
		c.temperature = temp
	}
}

// WithMatcher overrides the phonetic matcher used for identifier hints.
func WithMatcher(m *Matcher) Option {
	return func(c *Corrector) {
		c.matcher = m
	}
}

// Corrector rewrites raw transcripts via a [resilience.FallbackGroup] of LLM
// providers. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to correct with
// a specific model, construct the [llm.Provider] with that model configured.
type Corrector struct {
	group       *resilience.FallbackGroup[llm.Provider]
	matcher     *Matcher
	temperature float64
}

// New returns a Corrector backed by the given provider group.
func New(group *resilience.FallbackGroup[llm.Provider], opts ...Option) *Corrector {
	c := &Corrector{
		group:       group,
		matcher:     NewMatcher(),
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct rewrites hyp.Text using the editing context in snap.
//
// Failures never poison the pipeline: LLM transport errors are returned for
// logging, but the Result always carries deliverable text. Responses that
// fail validation (truncated code, runaway length) are discarded silently and
// the raw text is returned with a nil error.
func (c *Corrector) Correct(ctx context.Context, hyp *asr.Hypothesis, snap contextindex.Snapshot) (Result, error) {
	raw := strings.TrimSpace(hyp.Text)
	res := Result{Text: raw, Raw: raw}
	if raw == "" {
		return res, nil
	}

	res.Hints = c.Hints(raw, snap)

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(snap, res.Hints),
		Temperature:  c.temperature,
		MaxTokens:    defaultMaxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: raw},
		},
	}

	resp, err := resilience.ExecuteWithResult(c.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	if err != nil {
		return res, fmt.Errorf("correct: complete: %w", err)
	}

	candidate := stripMarkdown(resp.Content)
	if err := validateCandidate(raw, candidate); err != nil {
		// Discard and deliver raw; validation failure is not a pipeline error.
		return res, nil
	}

	res.Text = candidate
	res.Applied = true
	return res, nil
}

// Hints scans the transcript's word n-grams for phrases that phonetically
// align with workspace identifiers. Hints go into the prompt to steer the
// model; the model still decides whether to substitute.
func (c *Corrector) Hints(raw string, snap contextindex.Snapshot) []Hint {
	if len(snap.Keywords) == 0 {
		return nil
	}

	identifiers := make([]string, 0, len(snap.Keywords))
	identSet := make(map[string]struct{}, len(snap.Keywords))
	for _, kw := range snap.Keywords {
		identifiers = append(identifiers, kw.Text)
		identSet[strings.ToLower(kw.Text)] = struct{}{}
	}

	words := strings.Fields(raw)
	var hints []Hint
	seen := make(map[string]struct{})

	// Bigrams first so "handle request" wins over "handle" alone.
	for n := 2; n >= 1; n-- {
		for i := 0; i+n <= len(words); i++ {
			phrase := strings.Join(words[i:i+n], " ")
			key := strings.ToLower(phrase)
			if _, dup := seen[key]; dup {
				continue
			}
			// Already a verbatim identifier; nothing to hint.
			if _, exact := identSet[key]; exact {
				continue
			}
			ident, score, ok := c.matcher.Match(phrase, identifiers)
			if !ok || strings.EqualFold(ident, phrase) {
				continue
			}
			seen[key] = struct{}{}
			hints = append(hints, Hint{Spoken: phrase, Identifier: ident, Score: score})
		}
	}
	return hints
}
