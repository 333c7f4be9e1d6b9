// ABOUTME: History operations on the SQLite store
// ABOUTME: Windowed ordered reads, idempotent turn upserts and per-chat clears

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
)

// History returns the chat's turns in ascending turn-index order. Rows
// whose parts payload doesn't parse or whose role is unrecognized are
// skipped with a warning — one bad row must not take the whole chat down.
// The sliding window is applied after reconstruction.
func (s *SQLiteStore) History(ctx context.Context, chatID int64) ([]chat.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_index, role, parts_json
		FROM chat_history WHERE chat_id = ?
		ORDER BY turn_index ASC`, chatID)
	if err != nil {
		s.logger.Error("fetching history failed", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var history []chat.Turn
	for rows.Next() {
		var (
			index     int
			role      string
			partsJSON sql.NullString
		)
		if err := rows.Scan(&index, &role, &partsJSON); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		if !chat.Role(role).Valid() {
			s.logger.Warn("skipping history row with unsupported role",
				"chat_id", chatID, "turn_index", index, "role", role)
			continue
		}

		parts, err := chat.DecodeParts([]byte(partsJSON.String))
		if err != nil {
			s.logger.Warn("skipping history row with malformed parts",
				"chat_id", chatID, "turn_index", index, "error", err)
			continue
		}

		history = append(history, chat.Turn{
			ChatID: chatID,
			Index:  index,
			Role:   chat.Role(role),
			Parts:  parts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if s.window > 0 && len(history) > s.window {
		s.logger.Debug("truncating history to window",
			"chat_id", chatID, "stored", len(history), "window", s.window)
		history = history[len(history)-s.window:]
	}

	return history, nil
}

// SaveTurn upserts a turn at its (chat_id, turn_index) slot. Retrying the
// same save overwrites in place, so a crash between the user-turn and
// model-turn writes leaves a consistent, retriable prefix.
func (s *SQLiteStore) SaveTurn(ctx context.Context, turn chat.Turn) error {
	persistable := 0
	for _, p := range turn.Parts {
		if p.Placeholder() != "" || p.Type == chat.PartFunctionCall || p.Type == chat.PartFunctionResponse {
			persistable++
		}
	}
	if turn.Role == chat.RoleUser && persistable == 0 {
		s.logger.Warn("rejecting empty user turn", "chat_id", turn.ChatID, "turn_index", turn.Index)
		return ErrEmptyTurn
	}

	partsJSON, err := chat.EncodeParts(turn.Parts)
	if err != nil {
		return fmt.Errorf("encoding turn parts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_history (chat_id, turn_index, role, parts_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id, turn_index) DO UPDATE SET
			role       = excluded.role,
			parts_json = excluded.parts_json`,
		turn.ChatID, turn.Index, string(turn.Role), string(partsJSON))
	if err != nil {
		s.logger.Error("saving turn failed",
			"chat_id", turn.ChatID, "turn_index", turn.Index, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug("turn saved", "chat_id", turn.ChatID, "turn_index", turn.Index, "role", turn.Role)
	return nil
}

// ClearHistory deletes every turn for the chat.
func (s *SQLiteStore) ClearHistory(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE chat_id = ?`, chatID); err != nil {
		s.logger.Error("clearing history failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.logger.Info("history cleared", "chat_id", chatID)
	return nil
}
