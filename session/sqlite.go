package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/vaxmesh/logging"
)

// SQLiteStore implements Store on SQLite. History and user info are stored
// as JSON columns.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. Parent directories
// are created if needed. The path ":memory:" opens a private in-memory
// database.
func NewSQLiteStore(path string, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("session: creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: enabling WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT PRIMARY KEY,
			subject    TEXT NOT NULL DEFAULT '',
			agent_name TEXT NOT NULL,
			history    TEXT NOT NULL,
			user_info  TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: creating schema: %w", err)
	}

	// Databases created before snapshots had owners.
	if _, err := db.Exec(`ALTER TABLE snapshots ADD COLUMN subject TEXT NOT NULL DEFAULT ''`); err != nil &&
		!strings.Contains(err.Error(), "duplicate column") {
		_ = db.Close()
		return nil, fmt.Errorf("session: migrating schema: %w", err)
	}

	logger.Info("session.store.opened", "backend", "sqlite", "path", path)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Load returns the snapshot for id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (Snapshot, error) {
	var (
		snap      = Snapshot{SessionID: id}
		history   string
		userInfo  string
		updatedAt string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT subject, agent_name, history, user_info, updated_at FROM snapshots WHERE session_id = ?`, id,
	).Scan(&snap.Subject, &snap.AgentName, &history, &userInfo, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("session: querying snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(history), &snap.History); err != nil {
		return Snapshot{}, fmt.Errorf("session: decoding history: %w", err)
	}

	if err := json.Unmarshal([]byte(userInfo), &snap.UserInfo); err != nil {
		return Snapshot{}, fmt.Errorf("session: decoding user info: %w", err)
	}

	if snap.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Snapshot{}, fmt.Errorf("session: parsing updated_at: %w", err)
	}

	return snap, nil
}

// Save upserts snap.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	snap = sanitize(snap)

	history, err := json.Marshal(snap.History)
	if err != nil {
		return fmt.Errorf("session: encoding history: %w", err)
	}

	userInfo, err := json.Marshal(snap.UserInfo)
	if err != nil {
		return fmt.Errorf("session: encoding user info: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, subject, agent_name, history, user_info, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			subject    = excluded.subject,
			agent_name = excluded.agent_name,
			history    = excluded.history,
			user_info  = excluded.user_info,
			updated_at = excluded.updated_at`,
		snap.SessionID,
		snap.Subject,
		snap.AgentName,
		string(history),
		string(userInfo),
		snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("session: saving snapshot: %w", err)
	}

	s.logger.Debug("session.snapshot.saved", "session_id", snap.SessionID, "agent", snap.AgentName, "messages", snap.History.Len())

	return nil
}

// Delete removes the snapshot for id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("session: deleting snapshot: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
