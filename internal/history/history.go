// Package history persists delivered utterances to a local SQLite database
// so past dictation can be reviewed, re-inserted, or debugged. Persistence is
// optional: an empty path yields a no-op store.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Config controls where transcripts are stored and how long they live.
type Config struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`

	// RetentionDays prunes entries older than this many days. Zero keeps
	// everything.
	RetentionDays int `yaml:"retention_days"`

	// MaxEntries caps the table size, evicting the oldest rows. Zero means
	// unlimited.
	MaxEntries int `yaml:"max_entries"`
}

// Entry is one delivered utterance.
type Entry struct {
	ID        string
	CreatedAt time.Time

	// RawText is the uncorrected acoustic hypothesis.
	RawText string
	// FinalText is what was delivered to the sink.
	FinalText string
	// Corrected reports whether FinalText came from the semantic corrector.
	Corrected bool

	// Model names the transcriber model that produced the hypothesis.
	Model string
	// DurationMs is the utterance length on the capture timeline.
	DurationMs int64
}

// Store wraps the SQLite-backed transcript log. A Store opened without a
// path accepts writes and drops them.
type Store struct {
	db    *sql.DB
	cfg   Config
	clock func() time.Time
}

// Open initializes the store. The parent directory is created if missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return &Store{cfg: cfg, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Prune(ctx); err != nil {
		slog.Warn("history prune on start failed", "error", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS utterances (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    raw_text TEXT NOT NULL,
    final_text TEXT NOT NULL,
    corrected INTEGER NOT NULL,
    model TEXT,
    duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_utterances_created ON utterances(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable. Ephemeral stores always report
// healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Append records one delivered utterance. Missing ID and CreatedAt fields
// are filled in.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s.db == nil {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO utterances(id, created_at, raw_text, final_text, corrected, model, duration_ms)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.Format(time.RFC3339Nano), e.RawText, e.FinalText, e.Corrected, e.Model, e.DurationMs)
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, raw_text, final_text, corrected, model, duration_ms
		 FROM utterances ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &created, &e.RawText, &e.FinalText, &e.Corrected, &e.Model, &e.DurationMs); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune applies the configured retention limits.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM utterances WHERE created_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if s.cfg.MaxEntries > 0 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM utterances WHERE id IN (
			SELECT id FROM utterances ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxEntries); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
