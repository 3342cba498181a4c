// Package journal stores the outcome of every dispatched push in an embedded
// SQLite database.
//
// Architecture:
//   - Database file: ~/.pushy/journal.db (overridable)
//   - WAL mode: `pushy history` can read while a watcher writes
//   - Schema: a single pushes table indexed by time and result
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/Mschirtzinger/pushy/internal/events"
	"github.com/Mschirtzinger/pushy/internal/push"
)

// DefaultFile is the journal location below the user's home directory.
const DefaultFile = ".pushy/journal.db"

// Entry is one journal row.
type Entry struct {
	ID      string
	Time    time.Time
	Action  string
	Kind    string
	Path    string
	Backend string
	Result  push.Result
	Detail  string
}

// Query filters Recent. Zero fields do not filter.
type Query struct {
	Limit  int
	Since  time.Time
	Result *push.Result
}

// Store is the journal database. It implements push.Recorder.
type Store struct {
	conn *sql.DB
	path string
}

// DefaultPath returns the journal path in the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, DefaultFile), nil
}

// Open opens or creates the journal at path and makes sure the schema
// exists.
//
// The caller MUST call Close() when done.
func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	// busy_timeout is per connection, so keep exactly one.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.InitSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// InitSchema creates the pushes table and its indexes. Safe to call more
// than once.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pushes (
		id TEXT PRIMARY KEY,
		at INTEGER NOT NULL,      -- unix nanoseconds
		action TEXT NOT NULL,     -- added, updated, deleted
		kind TEXT NOT NULL,       -- file, dir
		path TEXT NOT NULL,
		backend TEXT NOT NULL,
		result TEXT NOT NULL,     -- pushed, skipped, failed
		detail TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_pushes_at ON pushes(at);
	CREATE INDEX IF NOT EXISTS idx_pushes_result ON pushes(result);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// Record implements push.Recorder.
func (s *Store) Record(ctx context.Context, o push.Outcome) error {
	_, err := s.Insert(ctx, Entry{
		Time:    o.Time,
		Action:  o.Event.Action.String(),
		Kind:    o.Event.Kind.String(),
		Path:    o.Event.Path,
		Backend: o.Backend,
		Result:  o.Result,
		Detail:  o.Detail,
	})
	return err
}

// Insert stores e, assigning an ID when it has none, and returns the ID.
func (s *Store) Insert(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO pushes (id, at, action, kind, path, backend, result, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UnixNano(), e.Action, e.Kind, e.Path, e.Backend, e.Result.String(), e.Detail)
	if err != nil {
		return "", fmt.Errorf("failed to record push of %s: %w", e.Path, err)
	}
	return e.ID, nil
}

// Recent returns entries newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]Entry, error) {
	var where []string
	var args []any
	if !q.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Result != nil {
		where = append(where, "result = ?")
		args = append(args, q.Result.String())
	}

	query := "SELECT id, at, action, kind, path, backend, result, detail FROM pushes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, rowid DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		var result string
		if err := rows.Scan(&e.ID, &at, &e.Action, &e.Kind, &e.Path, &e.Backend, &result, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Time = time.Unix(0, at)
		if e.Result, err = push.ParseResult(result); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// Get returns a single entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	var at int64
	var result string
	err := s.conn.QueryRowContext(ctx,
		"SELECT id, at, action, kind, path, backend, result, detail FROM pushes WHERE id = ?", id).
		Scan(&e.ID, &at, &e.Action, &e.Kind, &e.Path, &e.Backend, &result, &e.Detail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal entry %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry %s: %w", id, err)
	}
	e.Time = time.Unix(0, at)
	if e.Result, err = push.ParseResult(result); err != nil {
		return nil, err
	}
	return &e, nil
}

// Prune deletes entries older than before and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM pushes WHERE at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	// Checkpoint WAL before closing
	_, _ = s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	s.conn = nil
	return nil
}

// Event rebuilds the change event the entry was recorded for.
func (e Entry) Event() events.Event {
	ev := events.Event{Path: e.Path}
	switch e.Kind {
	case events.Dir.String():
		ev.Kind = events.Dir
	default:
		ev.Kind = events.File
	}
	switch e.Action {
	case events.Added.String():
		ev.Action = events.Added
	case events.Deleted.String():
		ev.Action = events.Deleted
	default:
		ev.Action = events.Updated
	}
	return ev
}
