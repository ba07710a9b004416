// Package store persists the append-only outcome log in SQLite so a
// restarted process can rebuild its statistics by replaying the log
// through a fresh recorder. Rows are never updated or deleted except by
// an explicit Clear.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/rankwalk/internal/stats"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
    id            TEXT PRIMARY KEY,
    keyword       TEXT NOT NULL,
    target        TEXT NOT NULL,
    matched       INTEGER NOT NULL DEFAULT 0,
    clicked       INTEGER NOT NULL DEFAULT 0,
    page          INTEGER NOT NULL DEFAULT 0,
    pages_scanned INTEGER NOT NULL DEFAULT 0,
    state         TEXT NOT NULL DEFAULT '',
    error         TEXT NOT NULL DEFAULT '',
    error_kind    TEXT NOT NULL DEFAULT '',
    elapsed_ms    INTEGER NOT NULL DEFAULT 0,
    at            INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS outcomes_at_idx ON outcomes(at);
CREATE INDEX IF NOT EXISTS outcomes_keyword_idx ON outcomes(keyword);
`

// ErrMissingID rejects outcomes without an identifier; the log needs a
// stable primary key for idempotent replay.
var ErrMissingID = errors.New("store: outcome id required")

// Store is the SQLite-backed outcome log.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened database and ensures the schema exists.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append writes one outcome. Outcomes are immutable; re-appending an
// already-stored ID is a conflict, not an update.
func (s *Store) Append(ctx context.Context, o stats.Outcome) error {
	if o.ID == "" {
		return ErrMissingID
	}
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (id, keyword, target, matched, clicked, page, pages_scanned, state, error, error_kind, elapsed_ms, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Keyword, o.Target, boolInt(o.Matched), boolInt(o.Clicked),
		o.Page, o.Pages, o.State, o.Error, o.ErrorKind,
		o.Elapsed.Milliseconds(), at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: append outcome %s: %w", o.ID, err)
	}
	return nil
}

// Replay streams every stored outcome in insert order. The callback's
// error stops the replay and is returned as-is.
func (s *Store) Replay(ctx context.Context, fn func(stats.Outcome) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, keyword, target, matched, clicked, page, pages_scanned, state, error, error_kind, elapsed_ms, at
		FROM outcomes ORDER BY rowid ASC`)
	if err != nil {
		return fmt.Errorf("store: replay query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return fmt.Errorf("store: replay scan: %w", err)
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: replay rows: %w", err)
	}
	return nil
}

// Count reports how many outcomes are stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Clear drops the whole log. Pairs with the recorder's Clear between
// sessions.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM outcomes`); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanOutcome(rows *sql.Rows) (stats.Outcome, error) {
	var (
		o                stats.Outcome
		matched, clicked int
		elapsedMs, atMs  int64
	)
	err := rows.Scan(&o.ID, &o.Keyword, &o.Target, &matched, &clicked,
		&o.Page, &o.Pages, &o.State, &o.Error, &o.ErrorKind, &elapsedMs, &atMs)
	if err != nil {
		return stats.Outcome{}, err
	}
	o.Matched = matched == 1
	o.Clicked = clicked == 1
	o.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	o.At = time.UnixMilli(atMs)
	return o, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
