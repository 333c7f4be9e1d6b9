// ABOUTME: SQLite implementation of the settings and history stores using modernc.org/sqlite
// ABOUTME: Provides per-chat settings and turn-log persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db           *sql.DB
	logger       *slog.Logger
	defaultModel string
	window       int // max turns returned by History; 0 disables truncation
}

// Options configure store behavior that is policy, not schema.
type Options struct {
	// DefaultModel is returned for chats that have no settings row yet.
	DefaultModel string
	// HistoryWindow is the number of most recent turns History returns.
	// Older turns are retained in the table but excluded from reads.
	HistoryWindow int
}

// NewSQLiteStore creates a new SQLite store at the given path. The schema
// is created if it doesn't exist, and parent directories are created as
// needed. Use ":memory:" for tests.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
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

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		logger:       logger,
		defaultModel: opts.DefaultModel,
		window:       opts.HistoryWindow,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "history_window", opts.HistoryWindow)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chat_settings (
			chat_id        INTEGER PRIMARY KEY,
			gemini_api_key TEXT,
			selected_model TEXT NOT NULL,
			message_count  INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS chat_history (
			chat_id    INTEGER NOT NULL,
			turn_index INTEGER NOT NULL,
			role       TEXT NOT NULL,
			parts_json TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (chat_id, turn_index)
		);

		CREATE INDEX IF NOT EXISTS idx_chat_history_chat_turn
			ON chat_history(chat_id, turn_index);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
