package contextindex_test

import (
	"context"
	"testing"

	"github.com/codevox-dev/codevox/internal/contextindex"
)

func TestStaticRanksKeywordsInListOrder(t *testing.T) {
	t.Parallel()

	idx := contextindex.NewStatic("go", []string{"handleRequest", " parseConfig ", "", "NewServer"})
	snap, err := idx.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if snap.Language != "go" {
		t.Errorf("Language: got %q, want go", snap.Language)
	}
	want := []string{"handleRequest", "parseConfig", "NewServer"}
	if len(snap.Keywords) != len(want) {
		t.Fatalf("got %d keywords, want %d", len(snap.Keywords), len(want))
	}
	for i, kw := range snap.Keywords {
		if kw.Text != want[i] {
			t.Errorf("keyword %d: got %q, want %q", i, kw.Text, want[i])
		}
		if i > 0 && kw.Rank < snap.Keywords[i-1].Rank {
			t.Errorf("keyword %d: rank %d out of order", i, kw.Rank)
		}
	}
}

func TestStaticUpdateReplacesSnapshot(t *testing.T) {
	t.Parallel()

	idx := contextindex.NewStatic("go", []string{"oldName"})
	idx.Update(contextindex.Snapshot{
		Language: "rust",
		Keywords: []contextindex.Keyword{
			{Text: "second", Rank: 2},
			{Text: "first", Rank: 1},
		},
	})

	snap, err := idx.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if snap.Language != "rust" {
		t.Errorf("Language: got %q, want rust", snap.Language)
	}
	if snap.Keywords[0].Text != "first" || snap.Keywords[1].Text != "second" {
		t.Errorf("keywords not re-sorted by rank: %+v", snap.Keywords)
	}
}

func TestFuncAdapterForwardsCapture(t *testing.T) {
	t.Parallel()

	called := false
	idx := contextindex.Func(func(context.Context) (contextindex.Snapshot, error) {
		called = true
		return contextindex.Snapshot{Language: "python"}, nil
	})

	snap, err := idx.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !called {
		t.Error("adapter did not invoke the wrapped function")
	}
	if snap.Language != "python" {
		t.Errorf("Language: got %q, want python", snap.Language)
	}
}
