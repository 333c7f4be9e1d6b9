// ABOUTME: Outbound message delivery implementing the engine's Transport interface
// ABOUTME: Renders Markdown replies to Telegram HTML with a plain-text fallback

package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/session"
)

// Sender delivers engine output to Telegram. Markdown-formatted text is
// rendered to Telegram HTML and split at the message length cap; if
// Telegram rejects the markup the chunk is resent as plain text rather
// than dropped.
type Sender struct {
	client *Client
	logger *slog.Logger
}

// NewSender wraps a Client as a session.Transport.
func NewSender(client *Client, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		client: client,
		logger: logger.With("component", "sender"),
	}
}

// Send implements session.Transport.
func (s *Sender) Send(ctx context.Context, chatID int64, text string, format session.Format) error {
	parseMode := ""
	if format == session.FormatMarkdown {
		text = RenderHTML(text)
		parseMode = "HTML"
	}

	for _, chunk := range SplitMessage(text, maxMessageLength) {
		_, err := s.client.SendMessage(ctx, SendMessageRequest{
			ChatID:    chatID,
			Text:      chunk,
			ParseMode: parseMode,
		})

		var apiErr *APIError
		if errors.As(err, &apiErr) && parseMode != "" && apiErr.Code == 400 {
			// Bad entity markup. Resend unformatted so the content
			// still reaches the user.
			s.logger.Warn("telegram rejected html markup, resending plain",
				"chat_id", chatID, "description", apiErr.Description)
			_, err = s.client.SendMessage(ctx, SendMessageRequest{ChatID: chatID, Text: chunk})
		}
		if err != nil {
			return err
		}
	}
	return nil
}
