package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, wrap(ErrDatabaseOpenFailed, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, wrap(ErrDatabaseOpenFailed, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, wrap(ErrInitializeSchemaFailed, err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		trigger_name TEXT NOT NULL DEFAULT '',
		commit_hash TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT '',
		documents INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		failed_stage TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		published INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS entries (
		build_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		doc_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (build_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_doc_id ON entries(doc_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordBuild inserts b and its entries in one transaction.
func (s *SQLiteStore) RecordBuild(ctx context.Context, b Build, entries []sidebar.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	published := 0
	if len(entries) > 0 {
		published = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (build_id, status, trigger_name, commit_hash, fingerprint, documents, started_at, duration_ns, failed_stage, error, published)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Status, b.Trigger, b.Commit, b.Fingerprint, b.Documents,
		b.StartedAt.UnixNano(), int64(b.Duration), b.FailedStage, b.Error, published,
	)
	if err != nil {
		return wrap(ErrWriteFailed, fmt.Errorf("insert build: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO entries (build_id, position, doc_id, payload) VALUES (?, ?, ?, ?)")
	if err != nil {
		return wrap(ErrWriteFailed, err)
	}
	defer func() { _ = stmt.Close() }()
	for i, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return wrap(ErrWriteFailed, fmt.Errorf("marshal entry %s: %w", e.ID, err))
		}
		if _, err := stmt.ExecContext(ctx, b.ID, i, e.ID, payload); err != nil {
			return wrap(ErrWriteFailed, fmt.Errorf("insert entry %s: %w", e.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap(ErrWriteFailed, err)
	}
	return nil
}

const buildColumns = "build_id, status, trigger_name, commit_hash, fingerprint, documents, started_at, duration_ns, failed_stage, error"

func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+buildColumns+" FROM builds WHERE build_id = ?", id)
	return scanBuild(row)
}

func (s *SQLiteStore) LatestPublished(ctx context.Context) (Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+buildColumns+" FROM builds WHERE published = 1 ORDER BY seq DESC LIMIT 1")
	return scanBuild(row)
}

func (s *SQLiteStore) ListBuilds(ctx context.Context, limit int) ([]Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+buildColumns+" FROM builds ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	return builds, nil
}

func (s *SQLiteStore) Entries(ctx context.Context, buildID string) ([]sidebar.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM entries WHERE build_id = ? ORDER BY position", buildID)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	var entries []sidebar.Entry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, wrap(ErrQueryFailed, err)
		}
		var e sidebar.Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, wrap(ErrQueryFailed, fmt.Errorf("unmarshal entry: %w", err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	return entries, nil
}

func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap(ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	const stale = "SELECT build_id FROM builds WHERE seq NOT IN (SELECT seq FROM builds ORDER BY seq DESC LIMIT ?)"
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE build_id IN ("+stale+")", keep); err != nil {
		return 0, wrap(ErrWriteFailed, fmt.Errorf("prune entries: %w", err))
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM builds WHERE build_id IN ("+stale+")", keep)
	if err != nil {
		return 0, wrap(ErrWriteFailed, fmt.Errorf("prune builds: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap(ErrWriteFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, wrap(ErrWriteFailed, err)
	}
	return int(n), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (Build, error) {
	var (
		b          Build
		startedAt  int64
		durationNS int64
	)
	err := row.Scan(&b.ID, &b.Status, &b.Trigger, &b.Commit, &b.Fingerprint, &b.Documents,
		&startedAt, &durationNS, &b.FailedStage, &b.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Build{}, ErrBuildNotFound
	}
	if err != nil {
		return Build{}, wrap(ErrQueryFailed, err)
	}
	b.StartedAt = time.Unix(0, startedAt).UTC()
	b.Duration = time.Duration(durationNS)
	return b, nil
}
