package correct

import (
	"fmt"
	"strings"
)

// Validation bounds: a corrected transcript that shrinks below a quarter of
// the raw text, or grows past four times it, almost certainly means the model
// answered the dictation instead of transcribing it.
const (
	minLengthRatio = 0.25
	maxLengthRatio = 4.0
	// ratioExemptLen skips the ratio check for very short utterances, where
	// legitimate expansion ("x" → "let x = 0;") blows past any fixed bound.
	ratioExemptLen = 20
)

// validateCandidate decides whether the model's output is safe to deliver in
// place of the raw transcript. A non-nil error means the caller must fall back
// to the raw text.
func validateCandidate(raw, candidate string) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return fmt.Errorf("correct: empty candidate")
	}

	if len(raw) >= ratioExemptLen {
		ratio := float64(len(candidate)) / float64(len(raw))
		if ratio < minLengthRatio || ratio > maxLengthRatio {
			return fmt.Errorf("correct: candidate length ratio %.2f outside [%.2f, %.2f]", ratio, minLengthRatio, maxLengthRatio)
		}
	}

	if err := checkDelimiters(candidate); err != nil {
		return err
	}
	return nil
}

// checkDelimiters verifies that brackets, braces, and parentheses balance,
// ignoring anything inside string or character literals. The corrector emits
// code fragments, so unbalanced delimiters usually mean a truncated
// completion.
func checkDelimiters(s string) error {
	var (
		stack  []rune
		quote  rune // active quote rune, 0 when outside a literal
		escape bool
	)

	for _, r := range s {
		if quote != 0 {
			switch {
			case escape:
				escape = false
			case r == '\\':
				escape = true
			case r == quote:
				quote = 0
			}
			continue
		}

		switch r {
		case '"', '\'', '`':
			quote = r
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 {
				return fmt.Errorf("correct: unmatched closing %q", r)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !delimiterPair(open, r) {
				return fmt.Errorf("correct: mismatched %q closed by %q", open, r)
			}
		}
	}

	if len(stack) > 0 {
		return fmt.Errorf("correct: %d unclosed delimiter(s)", len(stack))
	}
	// An unterminated string literal is fine: dictation legitimately stops
	// mid-string ("open quote hello world").
	return nil
}

func delimiterPair(open, close rune) bool {
	switch open {
	case '(':
		return close == ')'
	case '[':
		return close == ']'
	case '{':
		return close == '}'
	}
	return false
}
