// ABOUTME: Message quota gate for chats running on the shared default API key
// ABOUTME: Re-reads the counter before incrementing and emits limit warnings on crossings

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/store"
)

// Decision is the outcome of a quota check. A denial carries the text to
// show the user; an allowance may carry a one-off warning notice.
type Decision struct {
	Allowed bool
	// Reason is the user-facing denial text. Set only when !Allowed.
	Reason string
	// Notice is a warning to deliver before proceeding, set when the
	// increment crossed the 1-remaining or 0-remaining boundary.
	Notice string
}

// QuotaGate limits how many messages a chat may send on the shared
// default key. Chats with their own key always pass. The check is
// read-then-write without cross-process atomicity; two racing messages
// can both pass near the boundary, which we accept.
type QuotaGate struct {
	settings store.SettingsStore
	limit    int
	logger   *slog.Logger
}

// NewQuotaGate builds a gate. A limit of zero or below disables it.
func NewQuotaGate(settings store.SettingsStore, limit int, logger *slog.Logger) *QuotaGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaGate{
		settings: settings,
		limit:    limit,
		logger:   logger.With("component", "quota"),
	}
}

// Allow decides whether the chat may send another message, incrementing
// its counter when it is on the default key. Store failures during the
// increment deny the message with their own text rather than the limit
// text, so the user knows nothing was counted.
func (g *QuotaGate) Allow(ctx context.Context, settings *store.ChatSettings) Decision {
	if settings.APIKey != "" {
		return Decision{Allowed: true}
	}
	if g.limit <= 0 {
		return Decision{Allowed: true}
	}

	if settings.MessageCount >= g.limit {
		g.logger.Info("chat hit default key message limit", "chat_id", settings.ChatID, "limit", g.limit)
		return Decision{Reason: fmt.Sprintf(
			"You have reached the %d-message limit for users without a custom API key.\n\n"+
				"Please set your own API key using /set_api_key to continue chatting without limits.", g.limit)}
	}

	// Re-read before writing so a count bumped by an earlier message in
	// this process isn't clobbered with a stale value.
	latest, err := g.settings.Settings(ctx, settings.ChatID)
	if err != nil {
		g.logger.Error("failed to refetch settings for count update", "chat_id", settings.ChatID, "error", err)
		return Decision{Reason: "Error updating message count."}
	}

	next := latest.MessageCount + 1
	if err := g.settings.SaveSettings(ctx, settings.ChatID, latest.APIKey, latest.Model, &next); err != nil {
		g.logger.Error("failed to save updated message count", "chat_id", settings.ChatID, "error", err)
		return Decision{Reason: "Error saving message count. Please try again."}
	}
	g.logger.Info("message count incremented", "chat_id", settings.ChatID, "count", next)

	d := Decision{Allowed: true}
	switch g.limit - next {
	case 1:
		d.Notice = "You have 1 message remaining with the default API key.\n\n" +
			"Please use /set_api_key to provide your own Gemini API key to send more messages after this one."
	case 0:
		d.Notice = fmt.Sprintf(
			"This is your %dth and final message using the default API key.\n\n"+
				"To send more messages, please use /set_api_key to provide your own Gemini API key.", g.limit)
	}
	return d
}
