// Package sqlite persists session records to an embedded SQLite database as
// JSON payloads.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"testrig/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.SessionStore = (*Store)(nil)

const defaultPath = "testrig.db"

// Store writes one row per session.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (and creates if needed) the database at path.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		trainee TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Save upserts a record.
func (s *Store) Save(ctx context.Context, record domain.SessionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", record.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions(id,trainee,created_at,updated_at,payload) VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET trainee=excluded.trainee, updated_at=excluded.updated_at, payload=excluded.payload`,
		record.ID, record.Trainee,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.UpdatedAt.UTC().Format(time.RFC3339Nano),
		payload)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", record.ID, err)
	}
	return nil
}

// Load reads a record by id.
func (s *Store) Load(ctx context.Context, id string) (domain.SessionRecord, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("select session %s: %w", id, err)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return rec, true, nil
}

// List returns every record ordered by id.
func (s *Store) List(ctx context.Context) ([]domain.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.SessionRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var rec domain.SessionRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
