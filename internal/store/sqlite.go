// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists the face event ledger with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/face-gateway/internal/face"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS face_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			face_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			type TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_face_events_face
			ON face_events(face_id, id);

		CREATE INDEX IF NOT EXISTS idx_face_events_kind
			ON face_events(kind, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordFaceEvent appends a lifecycle event to the ledger
func (s *SQLiteStore) RecordFaceEvent(ctx context.Context, ev face.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO face_events (face_id, kind, type, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.FaceID, ev.Kind, ev.Type, ev.Detail, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting face event: %w", err)
	}
	return nil
}

// ListFaceEvents returns events matching filter, newest first
func (s *SQLiteStore) ListFaceEvents(ctx context.Context, filter EventFilter) ([]*FaceEvent, error) {
	var (
		where []string
		args  []any
	)
	if filter.FaceID != "" {
		where = append(where, "face_id = ?")
		args = append(args, filter.FaceID)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	query := `SELECT id, face_id, kind, type, detail, created_at FROM face_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying face events: %w", err)
	}
	defer rows.Close()

	var events []*FaceEvent
	for rows.Next() {
		ev, err := scanFaceEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetFaceEvent returns the event with the given id
func (s *SQLiteStore) GetFaceEvent(ctx context.Context, id int64) (*FaceEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, face_id, kind, type, detail, created_at FROM face_events WHERE id = ?
	`, id)
	ev, err := scanFaceEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFaceEvent(row scanner) (*FaceEvent, error) {
	var (
		ev        FaceEvent
		createdAt string
	)
	if err := row.Scan(&ev.ID, &ev.FaceID, &ev.Kind, &ev.Type, &ev.Detail, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning face event: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing event time: %w", err)
	}
	ev.CreatedAt = t
	return &ev, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
