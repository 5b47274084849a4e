package correct

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption is a functional option for configuring a [Matcher].
type MatcherOption func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched identifier to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher aligns spoken words with workspace identifiers. The transcriber
// renders "handleRequest" as "handle request" and "Eldrinax" as "elder nacks";
// phonetic matching recovers the intended identifier before the text ever
// reaches the language model.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word in the input and for each identifier. If any code from the
//     input overlaps with any code from an identifier, it becomes a phonetic
//     candidate.
//
//  2. Jaro-Winkler ranking: Among phonetic candidates, the identifier with the
//     highest Jaro-Winkler similarity (computed on the original strings,
//     case-insensitive) is selected — provided its score exceeds the phonetic
//     threshold. When no phonetic candidate is found, a secondary pass tests
//     pure Jaro-Winkler similarity against all identifiers using a higher
//     fuzzy threshold.
//
// Multi-word inputs are supported: camelCase identifiers are split into their
// word parts before encoding, so "write batch" aligns with "WriteBatch".
//
// All methods are safe for concurrent use — the Matcher is read-only after
// construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a new [Matcher] configured with the supplied options.
// Default thresholds are 0.70 for phonetic matches and 0.85 for fuzzy
// fallback matches.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match attempts to find the identifier most phonetically similar to phrase.
//
// phrase may be a single word or a space-separated n-gram from the raw
// transcript. Returns the matched identifier in its canonical spelling, the
// similarity score, and whether any candidate cleared its threshold. When
// matched is false, corrected equals phrase unchanged and confidence is 0.
func (m *Matcher) Match(phrase string, identifiers []string) (corrected string, confidence float64, matched bool) {
	if len(identifiers) == 0 || strings.TrimSpace(phrase) == "" {
		return phrase, 0, false
	}

	phraseLower := strings.ToLower(strings.TrimSpace(phrase))
	phraseTokens := strings.Fields(phraseLower)

	inputCodes := codesForTokens(phraseTokens)

	type candidate struct {
		identifier string
		score      float64
		phonetic   bool
	}

	var best candidate

	for _, ident := range identifiers {
		if strings.TrimSpace(ident) == "" {
			continue
		}
		identTokens := splitIdentifier(ident)

		identCodes := codesForTokens(identTokens)
		phoneticMatch := codesOverlap(inputCodes, identCodes)

		jwScore := bestJWScore(phraseTokens, identTokens, phraseLower, strings.ToLower(ident))

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{identifier: ident, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{identifier: ident, score: jwScore, phonetic: false}
			}
		}
	}

	if best.identifier != "" {
		return best.identifier, best.score, true
	}
	return phrase, 0, false
}

// splitIdentifier breaks an identifier into lowercase word parts along
// camelCase, snake_case, and kebab-case boundaries.
func splitIdentifier(ident string) []string {
	var (
		parts []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	runes := []rune(ident)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case r >= 'A' && r <= 'Z':
			// New word on lower→upper transitions only, so acronyms like
			// "HTTPServer" stay together until the next lowercase rune.
			if i > 0 && runes[i-1] >= 'a' && runes[i-1] <= 'z' {
				flush()
			}
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	if len(parts) == 0 {
		return []string{strings.ToLower(ident)}
	}
	return parts
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or
// contains no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set for efficiency.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and the identifier using three strategies:
//
//  1. Full-string comparison (e.g., "handle request" vs "handlerequest").
//  2. Space-stripped comparison (e.g., "handlerequest" vs "handlerequest").
//  3. Best pairwise word comparison — the maximum JW score between any input
//     token and any identifier part (useful when one spoken word corresponds
//     to one identifier word).
//
// longTolerance is passed as false to use standard Jaro-Winkler scoring.
func bestJWScore(inputTokens, identTokens []string, inputFull, identFull string) float64 {
	// Strategy 1: full strings.
	score := matchr.JaroWinkler(inputFull, identFull, false)

	// Strategy 2: concatenated (no spaces).
	if len(inputTokens) > 1 || len(identTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(identTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	// Strategy 3: best pairwise token score.
	for _, it := range inputTokens {
		for _, et := range identTokens {
			if s := matchr.JaroWinkler(it, et, false); s > score {
				score = s
			}
		}
	}

	return score
}
