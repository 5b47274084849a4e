// Package bias builds the initial prompt handed to the transcriber. Whisper
// conditions decoding on this prompt, so seeding it with workspace
// identifiers pulls ambiguous audio toward the vocabulary the user actually
// types. The prompt is hard-capped: past roughly fifty tokens whisper ignores
// the rest, and an overlong prompt increases hallucination on silence.
package bias

import (
	"strings"

	"github.com/codevox-dev/codevox/internal/contextindex"
)

// maxPromptTokens caps the estimated size of the bias prompt.
const maxPromptTokens = 50

// defaultTerms seed the prompt when no workspace keywords are available, so
// bare sessions still bias toward programming vocabulary over homophones.
var defaultTerms = []string{
	"function", "variable", "struct", "async", "await", "enum",
	"boolean", "nil", "goroutine", "mutex", "regex", "JSON",
}

// Builder assembles bias prompts within a token budget.
type Builder struct {
	budget int
}

// NewBuilder returns a Builder with the default token budget.
func NewBuilder() *Builder {
	return &Builder{budget: maxPromptTokens}
}

// Build renders a bias prompt from the snapshot's ranked keywords. Keywords
// are consumed in rank order until the budget is spent; remaining budget is
// filled from the default term list. Returns "" only when the budget is
// non-positive.
func (b *Builder) Build(snap contextindex.Snapshot) string {
	if b.budget <= 0 {
		return ""
	}

	seen := make(map[string]struct{})
	var (
		terms []string
		used  int
	)

	appendTerm := func(term string) bool {
		term = strings.TrimSpace(term)
		if term == "" {
			return true
		}
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			return true
		}
		cost := estimateTokens(term) + 1 // separator
		if used+cost > b.budget {
			return false
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
		used += cost
		return true
	}

	for _, kw := range snap.Keywords {
		if !appendTerm(kw.Text) {
			break
		}
	}
	for _, term := range defaultTerms {
		if !appendTerm(term) {
			break
		}
	}

	return strings.Join(terms, ", ")
}

// estimateTokens approximates the BPE token count without loading a
// tokenizer. Four characters per token is the standard heuristic and errs
// high for identifiers, which is the safe direction for a cap.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
