// ABOUTME: Store interfaces and data types for gemini-tel-bot persistence
// ABOUTME: Defines ChatSettings, the SettingsStore and HistoryStore contracts and shared errors

package store

import (
	"context"
	"errors"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
)

// ErrUnavailable is returned when the backing database cannot be reached.
var ErrUnavailable = errors.New("store unavailable")

// ErrEmptyTurn is returned when a user turn with no persistable parts is
// rejected. Model turns with empty parts are accepted: a pure tool-use turn
// must still occupy its history slot so turn indices stay dense.
var ErrEmptyTurn = errors.New("user turn has no parts")

// ChatSettings is the durable per-chat configuration. MessageCount is only
// meaningful while APIKey is empty (shared-credential mode); once a custom
// key is set, counting is suspended but the stored value is left alone.
type ChatSettings struct {
	ChatID       int64
	APIKey       string // empty means the bot's default key
	Model        string
	MessageCount int
}

// SettingsStore persists per-chat configuration.
type SettingsStore interface {
	// Settings returns the chat's settings, or defaults if the chat has
	// never been seen. It fails only when the store itself is unreachable.
	Settings(ctx context.Context, chatID int64) (*ChatSettings, error)

	// SaveSettings upserts the key and model unconditionally. The counter
	// is written only when count is non-nil; nil preserves the stored
	// value. A returned error means "state not changed" — callers must not
	// assume any rollback of earlier steps.
	SaveSettings(ctx context.Context, chatID int64, apiKey, model string, count *int) error
}

// HistoryStore persists the ordered per-chat turn log.
type HistoryStore interface {
	// History returns the chat's turns ascending by index, already
	// truncated to the configured window. Malformed rows are skipped with
	// a warning, never fatal.
	History(ctx context.Context, chatID int64) ([]chat.Turn, error)

	// SaveTurn upserts a turn at (turn.ChatID, turn.Index). Calling it
	// twice with identical arguments is a no-op the second time.
	SaveTurn(ctx context.Context, turn chat.Turn) error

	// ClearHistory deletes every turn for the chat.
	ClearHistory(ctx context.Context, chatID int64) error
}

// Store combines both stores; the SQLite implementation backs them with
// one database file.
type Store interface {
	SettingsStore
	HistoryStore
}
