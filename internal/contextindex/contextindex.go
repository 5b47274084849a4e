// Package contextindex supplies the editing context that steers recognition
// and correction: identifiers ranked by relevance, the lines around the
// cursor, and the active language. Implementations range from a static list
// configured at startup to a live editor integration.
package contextindex

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Keyword is an identifier or term from the user's workspace, ranked by how
// likely it is to be spoken. Lower rank means more relevant.
type Keyword struct {
	Text string
	Rank int
}

// Snapshot is a point-in-time view of the editing context. All fields are
// optional; a zero Snapshot disables biasing and context-aware correction.
type Snapshot struct {
	// Keywords are workspace identifiers in rank order.
	Keywords []Keyword
	// Before holds the lines immediately above the cursor, oldest first.
	Before []string
	// After holds the lines immediately below the cursor.
	After []string
	// CursorLine and CursorCol locate the insertion point, 1-based.
	CursorLine int
	CursorCol  int
	// Language is the active buffer's language identifier ("go", "rust").
	Language string
}

// Indexer produces context snapshots on demand. Capture is called once per
// utterance, at span close, so it should be fast.
type Indexer interface {
	Capture(ctx context.Context) (Snapshot, error)
}

// Compile-time assertions.
var (
	_ Indexer = (*Static)(nil)
	_ Indexer = (Func)(nil)
)

// Func adapts a function to the Indexer interface.
type Func func(ctx context.Context) (Snapshot, error)

// Capture implements Indexer.
func (f Func) Capture(ctx context.Context) (Snapshot, error) { return f(ctx) }

// Static serves a fixed snapshot, optionally updated at runtime. It backs
// the config-file keyword list and is the safe default when no editor is
// attached.
type Static struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatic builds a Static indexer from plain keyword strings; rank follows
// list order.
func NewStatic(language string, keywords []string) *Static {
	ranked := make([]Keyword, 0, len(keywords))
	for i, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		ranked = append(ranked, Keyword{Text: kw, Rank: i})
	}
	return &Static{snap: Snapshot{Keywords: ranked, Language: language}}
}

// Capture implements Indexer.
func (s *Static) Capture(context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, nil
}

// Update replaces the served snapshot. Keywords are re-sorted by rank so
// callers may merge lists from several sources.
func (s *Static) Update(snap Snapshot) {
	sort.SliceStable(snap.Keywords, func(i, j int) bool {
		return snap.Keywords[i].Rank < snap.Keywords[j].Rank
	})
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}
