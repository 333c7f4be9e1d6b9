// ABOUTME: Settings operations on the SQLite store
// ABOUTME: Lazy-default reads and partial upserts of per-chat configuration

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Settings returns the chat's settings, falling back to defaults for a
// chat that has no row yet. "Not found" is never surfaced to the caller;
// only a store-level failure is.
func (s *SQLiteStore) Settings(ctx context.Context, chatID int64) (*ChatSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT gemini_api_key, selected_model, message_count
		FROM chat_settings WHERE chat_id = ?`, chatID)

	var apiKey sql.NullString
	settings := &ChatSettings{ChatID: chatID}
	err := row.Scan(&apiKey, &settings.Model, &settings.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("no settings row, returning defaults", "chat_id", chatID)
		return &ChatSettings{ChatID: chatID, Model: s.defaultModel}, nil
	}
	if err != nil {
		s.logger.Error("fetching settings failed", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	settings.APIKey = apiKey.String
	return settings, nil
}

// SaveSettings upserts the chat's key and model. The message counter is
// written only when count is non-nil so a settings change can't clobber a
// concurrent increment it never read.
func (s *SQLiteStore) SaveSettings(ctx context.Context, chatID int64, apiKey, model string, count *int) error {
	var key any
	if apiKey != "" {
		key = apiKey
	}

	var err error
	if count != nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO chat_settings (chat_id, gemini_api_key, selected_model, message_count)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(chat_id) DO UPDATE SET
				gemini_api_key = excluded.gemini_api_key,
				selected_model = excluded.selected_model,
				message_count  = excluded.message_count`,
			chatID, key, model, *count)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO chat_settings (chat_id, gemini_api_key, selected_model, message_count)
			VALUES (?, ?, ?, 0)
			ON CONFLICT(chat_id) DO UPDATE SET
				gemini_api_key = excluded.gemini_api_key,
				selected_model = excluded.selected_model`,
			chatID, key, model)
	}
	if err != nil {
		s.logger.Error("saving settings failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug("settings saved", "chat_id", chatID, "model", model, "count_written", count != nil)
	return nil
}
