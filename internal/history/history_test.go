package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/codevox-dev/codevox/internal/history"
	"github.com/codevox-dev/codevox/internal/pipeline"
)

func openStore(t *testing.T, cfg history.Config) *history.Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "history.db")
	}
	store, err := history.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := openStore(t, history.Config{})
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	entries := []history.Entry{
		{RawText: "let x equal five", FinalText: "let x = 5;", Corrected: true, Model: "ggml-base.en", DurationMs: 1800, CreatedAt: base},
		{RawText: "open the config file", FinalText: "open the config file", CreatedAt: base.Add(time.Minute)},
	}
	for _, e := range entries {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].FinalText != "open the config file" {
		t.Errorf("expected newest first, got %q", got[0].FinalText)
	}
	if got[1].RawText != "let x equal five" || !got[1].Corrected {
		t.Errorf("unexpected oldest entry: %+v", got[1])
	}
	if got[1].Model != "ggml-base.en" || got[1].DurationMs != 1800 {
		t.Errorf("expected model and duration preserved, got %+v", got[1])
	}
	if got[0].ID == "" {
		t.Error("expected an ID to be assigned on append")
	}
}

func TestPruneEnforcesMaxEntries(t *testing.T) {
	store := openStore(t, history.Config{MaxEntries: 2})
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third"} {
		err := store.Append(ctx, history.Entry{
			FinalText: text,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := store.Prune(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after prune, got %d", len(got))
	}
	if got[0].FinalText != "third" || got[1].FinalText != "second" {
		t.Errorf("expected oldest entry evicted, got %q, %q", got[0].FinalText, got[1].FinalText)
	}
}

func TestPruneDropsExpiredEntries(t *testing.T) {
	store := openStore(t, history.Config{RetentionDays: 7})
	ctx := context.Background()

	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if err := store.Append(ctx, history.Entry{FinalText: "ancient", CreatedAt: old}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Append(ctx, history.Entry{FinalText: "fresh"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Prune(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].FinalText != "fresh" {
		t.Errorf("expected only the fresh entry to survive, got %+v", got)
	}
}

func TestEmptyPathDisablesPersistence(t *testing.T) {
	store, err := history.Open(context.Background(), history.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	if err := store.Append(context.Background(), history.Entry{FinalText: "dropped"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no entries from a disabled store, got %v", got)
	}
}

// discardSink counts forwarded results so tests can assert delegation.
type discardSink struct {
	partials int
	results  int
	states   int
}

func (s *discardSink) EmitPartial(uint64, string) { s.partials++ }
func (s *discardSink) EmitResult(pipeline.Result) { s.results++ }
func (s *discardSink) EmitState(pipeline.State)   { s.states++ }

func TestSinkPersistsDeliveredResults(t *testing.T) {
	store := openStore(t, history.Config{})
	inner := &discardSink{}
	sink := history.NewSink(inner, store, "ggml-base.en")

	sink.EmitPartial(1, "let x")
	sink.EmitState(pipeline.StateListening)
	sink.EmitResult(pipeline.Result{
		Seq: 1, Text: "let x = 5;", Raw: "let x equal five", Corrected: true,
		Start: time.Second, End: 3 * time.Second,
	})
	sink.EmitResult(pipeline.Result{Seq: 2, Suppressed: true, SuppressReason: "silence"})

	if inner.partials != 1 || inner.results != 2 || inner.states != 1 {
		t.Errorf("expected all emissions forwarded, got %+v", inner)
	}

	got, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the delivered result persisted, got %d entries", len(got))
	}
	if got[0].FinalText != "let x = 5;" || got[0].RawText != "let x equal five" {
		t.Errorf("unexpected entry: %+v", got[0])
	}
	if got[0].DurationMs != 2000 {
		t.Errorf("expected 2000 ms duration, got %d", got[0].DurationMs)
	}
	if got[0].Model != "ggml-base.en" {
		t.Errorf("expected model label, got %q", got[0].Model)
	}
}
