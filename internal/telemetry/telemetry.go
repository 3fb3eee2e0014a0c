// Package telemetry is an opt-in diagnostic request log, recording one row
// per translated item of a /translate call for later inspection. It is narrower than a
// translation cache: nothing here is read back by the engine, only written
// for observability, so enabling it never changes translation behavior.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store persists translation-request telemetry to a single sqlite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite database at dbPath and applies
// the telemetry schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", dbPath, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL,
		source_lang TEXT,
		target_lang TEXT,
		model_family TEXT,
		was_pivoted BOOLEAN,
		duration_ms INTEGER,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

// RequestEntry is one logged item of a translate call.
type RequestEntry struct {
	ID          string
	Endpoint    string
	SourceLang  string
	TargetLang  string
	ModelFamily string
	WasPivoted  bool
	DurationMs  int64
	Error       string
}

// Log inserts entry. Failures are the caller's concern to decide whether to
// surface or swallow — telemetry is best-effort and must never block a
// response on its own error.
func (s *Store) Log(ctx context.Context, entry RequestEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, endpoint, source_lang, target_lang, model_family, was_pivoted, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Endpoint, entry.SourceLang, entry.TargetLang, entry.ModelFamily, entry.WasPivoted, entry.DurationMs, entry.Error)
	return err
}

// RecentErrors returns the most recent logged requests that recorded a
// non-empty error, newest first, for a quick diagnostic tail.
func (s *Store) RecentErrors(ctx context.Context, limit int) ([]RequestEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, source_lang, target_lang, model_family, was_pivoted, duration_ms, error
		FROM requests WHERE error != '' ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequestEntry
	for rows.Next() {
		var e RequestEntry
		if err := rows.Scan(&e.ID, &e.Endpoint, &e.SourceLang, &e.TargetLang, &e.ModelFamily, &e.WasPivoted, &e.DurationMs, &e.Error); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }
