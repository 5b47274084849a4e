package correct_test

import (
	"testing"

	"github.com/codevox-dev/codevox/internal/correct"
)

func TestMatcherAlignsSpokenIdentifiers(t *testing.T) {
	t.Parallel()

	identifiers := []string{"handleRequest", "parseConfig", "WriteBatch", "retryBackoff"}

	tests := []struct {
		name   string
		phrase string
		want   string
		wantOK bool
	}{
		{"split camelCase", "handle request", "handleRequest", true},
		{"misheard word", "handel request", "handleRequest", true},
		{"snake style phrase", "write batch", "WriteBatch", true},
		{"single token", "parse config", "parseConfig", true},
		{"unrelated phrase", "completely different thing", "completely different thing", false},
		{"empty input", "   ", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, conf, ok := correct.NewMatcher().Match(tt.phrase, identifiers)
			if ok != tt.wantOK {
				t.Fatalf("Match(%q) matched = %v, want %v", tt.phrase, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.phrase, got, tt.want)
			}
			if ok && conf <= 0 {
				t.Errorf("Match(%q) confidence = %v, want > 0", tt.phrase, conf)
			}
		})
	}
}

func TestMatcherNoIdentifiers(t *testing.T) {
	t.Parallel()

	got, conf, ok := correct.NewMatcher().Match("anything", nil)
	if ok || conf != 0 || got != "anything" {
		t.Errorf("Match with no identifiers = (%q, %v, %v), want passthrough", got, conf, ok)
	}
}

func TestMatcherThresholdOptions(t *testing.T) {
	t.Parallel()

	// With an impossible threshold nothing should match.
	m := correct.NewMatcher(
		correct.WithPhoneticThreshold(1.01),
		correct.WithFuzzyThreshold(1.01),
	)
	if _, _, ok := m.Match("handle request", []string{"handleRequest"}); ok {
		t.Error("Match succeeded despite threshold above 1.0")
	}
}

func TestMatcherHandlesMultiWordPhrases(t *testing.T) {
	t.Parallel()

	got, _, ok := correct.NewMatcher().Match("retry back off", []string{"retryBackoff", "parseConfig"})
	if !ok {
		t.Fatal("expected a match for retry back off")
	}
	if got != "retryBackoff" {
		t.Errorf("Match(retry back off) = %q, want retryBackoff", got)
	}
}
