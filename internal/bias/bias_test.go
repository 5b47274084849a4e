package bias_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/codevox-dev/codevox/internal/bias"
	"github.com/codevox-dev/codevox/internal/contextindex"
)

func TestBuildUsesKeywordsInRankOrder(t *testing.T) {
	t.Parallel()

	snap := contextindex.Snapshot{
		Keywords: []contextindex.Keyword{
			{Text: "handleRequest", Rank: 0},
			{Text: "parseConfig", Rank: 1},
			{Text: "WriteBatch", Rank: 2},
		},
	}

	prompt := bias.NewBuilder().Build(snap)
	hi := strings.Index(prompt, "handleRequest")
	pi := strings.Index(prompt, "parseConfig")
	wi := strings.Index(prompt, "WriteBatch")
	if hi < 0 || pi < 0 || wi < 0 {
		t.Fatalf("prompt %q missing a keyword", prompt)
	}
	if !(hi < pi && pi < wi) {
		t.Errorf("prompt %q does not preserve rank order", prompt)
	}
}

func TestBuildEmptySnapshotFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	prompt := bias.NewBuilder().Build(contextindex.Snapshot{})
	if prompt == "" {
		t.Fatal("prompt is empty, want default vocabulary")
	}
	if !strings.Contains(prompt, "goroutine") {
		t.Errorf("prompt %q missing default term", prompt)
	}
}

func TestBuildRespectsTokenBudget(t *testing.T) {
	t.Parallel()

	var kws []contextindex.Keyword
	for i := 0; i < 200; i++ {
		kws = append(kws, contextindex.Keyword{
			Text: fmt.Sprintf("someLongIdentifierName%03d", i),
			Rank: i,
		})
	}

	prompt := bias.NewBuilder().Build(contextindex.Snapshot{Keywords: kws})

	// 50 tokens at ~4 chars each; allow slack for separators.
	if est := (len(prompt) + 3) / 4; est > 60 {
		t.Errorf("prompt estimated at %d tokens (%d chars), exceeds budget", est, len(prompt))
	}
	if !strings.Contains(prompt, "someLongIdentifierName000") {
		t.Error("prompt dropped the highest-ranked keyword")
	}
	if strings.Contains(prompt, "someLongIdentifierName150") {
		t.Error("prompt kept a keyword far past the budget")
	}
}

func TestBuildDeduplicatesCaseInsensitively(t *testing.T) {
	t.Parallel()

	snap := contextindex.Snapshot{
		Keywords: []contextindex.Keyword{
			{Text: "Mutex", Rank: 0},
			{Text: "mutex", Rank: 1},
		},
	}
	prompt := bias.NewBuilder().Build(snap)
	if n := strings.Count(strings.ToLower(prompt), "mutex"); n != 1 {
		t.Errorf("prompt contains %d occurrences of mutex, want 1: %q", n, prompt)
	}
}
