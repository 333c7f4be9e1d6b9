// ABOUTME: Routes inbound Telegram updates to the conversation engine
// ABOUTME: Handles commands, text and photo messages and model-selection callbacks

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/genai"
)

const callbackSetModelPrefix = "set_model:"

const welcomeText = "Hello! I'm a bot powered by Google Gemini.\n\n" +
	"You can chat with me by sending text or photos (with captions).\n" +
	"I remember our conversation history (up to model limits).\n\n" +
	"Available commands:\n" +
	"/start or /help - Show this message.\n" +
	"/reset - Clear the current chat history.\n" +
	"/set_api_key - Set your personal Gemini API key.\n" +
	"/clear_api_key - Use the bot's default API key (if available).\n" +
	"/list_models - List models available with your current API key.\n" +
	"/select_model - Choose a model using buttons.\n" +
	"/current_settings - Show your active API key status and model.\n\n" +
	"Note: If you set a new API key or model, your chat history will be reset."

// Engine is the conversation engine behind the dispatcher, satisfied by
// *session.Service.
type Engine interface {
	HandleMessage(ctx context.Context, chatID int64, parts []chat.Part)
	BeginKeyEntry(chatID int64) string
	Cancel(chatID int64) string
	Reset(ctx context.Context, chatID int64) string
	ClearAPIKey(ctx context.Context, chatID int64) string
	SelectModel(ctx context.Context, chatID int64, model string) string
	CurrentSettings(ctx context.Context, chatID int64) string
	AvailableModels(ctx context.Context, chatID int64) ([]genai.ModelInfo, string)
}

// Dispatcher routes one update at a time. It never lets a panic escape:
// a broken update is logged and answered with a generic apology.
type Dispatcher struct {
	client *Client
	engine Engine
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(client *Client, engine Engine, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client: client,
		engine: engine,
		logger: logger.With("component", "dispatcher"),
	}
}

// HandleUpdate processes a single inbound update.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update Update) {
	chatID := updateChatID(update)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling update", "update_id", update.UpdateID, "panic", r)
			if chatID != 0 {
				d.reply(ctx, chatID, "An unexpected error occurred during processing.")
			}
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		d.handleMessage(ctx, update.Message)
	default:
		d.logger.Debug("ignoring update without message or callback", "update_id", update.UpdateID)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID

	if strings.HasPrefix(msg.Text, "/") {
		d.handleCommand(ctx, chatID, msg.Text)
		return
	}

	switch {
	case len(msg.Photo) > 0:
		d.handlePhoto(ctx, msg)
	case msg.Text != "":
		if err := d.client.SendChatAction(ctx, chatID, "typing"); err != nil {
			d.logger.Debug("failed to send chat action", "chat_id", chatID, "error", err)
		}
		d.engine.HandleMessage(ctx, chatID, []chat.Part{chat.TextPart(msg.Text)})
	default:
		d.logger.Warn("unsupported content type", "chat_id", chatID)
		d.reply(ctx, chatID, "Sorry, I can currently only process text and photos.")
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, chatID int64, text string) {
	fields := strings.Fields(text)
	command := strings.TrimPrefix(fields[0], "/")
	// Group chats address commands as /command@botname.
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	d.logger.Info("handling command", "chat_id", chatID, "command", command)

	switch command {
	case "start", "help":
		d.reply(ctx, chatID, welcomeText)
	case "reset":
		d.reply(ctx, chatID, d.engine.Reset(ctx, chatID))
	case "set_api_key":
		d.reply(ctx, chatID, d.engine.BeginKeyEntry(chatID))
	case "cancel":
		d.reply(ctx, chatID, d.engine.Cancel(chatID))
	case "clear_api_key":
		d.reply(ctx, chatID, d.engine.ClearAPIKey(ctx, chatID))
	case "current_settings":
		d.reply(ctx, chatID, d.engine.CurrentSettings(ctx, chatID))
	case "list_models":
		d.handleListModels(ctx, chatID)
	case "select_model":
		d.handleSelectModel(ctx, chatID)
	default:
		d.reply(ctx, chatID, "Unknown command. Use /help to see available commands.")
	}
}

func (d *Dispatcher) handleListModels(ctx context.Context, chatID int64) {
	d.reply(ctx, chatID, "Fetching available models (this might take a moment)...")

	models, errText := d.engine.AvailableModels(ctx, chatID)
	if errText != "" {
		d.reply(ctx, chatID, errText)
		return
	}

	var b strings.Builder
	b.WriteString("Available Models (may vary based on API key/region):\n\n")
	for _, m := range models {
		fmt.Fprintf(&b, "Model name: %s\n", m.BaseName())
		if m.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", m.Description)
		}
		if m.InputTokenLimit > 0 {
			fmt.Fprintf(&b, "Input Tokens: %d\n", m.InputTokenLimit)
		}
		if m.OutputTokenLimit > 0 {
			fmt.Fprintf(&b, "Output Tokens: %d\n", m.OutputTokenLimit)
		}
		b.WriteString("\n")
	}
	b.WriteString("Use /select_model to choose one.")

	for _, chunk := range SplitMessage(b.String(), maxMessageLength) {
		d.reply(ctx, chatID, chunk)
	}
}

func (d *Dispatcher) handleSelectModel(ctx context.Context, chatID int64) {
	models, errText := d.engine.AvailableModels(ctx, chatID)
	if errText != "" {
		d.reply(ctx, chatID, errText)
		return
	}

	var rows [][]InlineKeyboardButton
	for _, m := range models {
		callbackData := callbackSetModelPrefix + m.Name
		// callback_data is capped at 64 bytes by Telegram
		if len(callbackData) > 64 {
			d.logger.Warn("model name too long for callback data, skipping", "model", m.Name)
			continue
		}
		label := m.BaseName()
		if len(label) > 30 {
			label = label[:27] + "..."
		}
		rows = append(rows, []InlineKeyboardButton{{Text: label, CallbackData: callbackData}})
	}

	if len(rows) == 0 {
		d.reply(ctx, chatID, "No models available to display as buttons.")
		return
	}

	_, err := d.client.SendMessage(ctx, SendMessageRequest{
		ChatID:      chatID,
		Text:        "Please select a model:",
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: rows},
	})
	if err != nil {
		d.logger.Error("failed to send model keyboard", "chat_id", chatID, "error", err)
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if !strings.HasPrefix(cb.Data, callbackSetModelPrefix) || cb.Message == nil {
		d.logger.Warn("unrecognized callback", "data", cb.Data)
		if err := d.client.AnswerCallbackQuery(ctx, cb.ID, "Error: Invalid selection data."); err != nil {
			d.logger.Debug("failed to answer callback", "error", err)
		}
		return
	}

	model := strings.TrimPrefix(cb.Data, callbackSetModelPrefix)
	chatID := cb.Message.Chat.ID
	d.logger.Info("model selected via button", "chat_id", chatID, "model", model)

	if err := d.client.AnswerCallbackQuery(ctx, cb.ID, fmt.Sprintf("Setting model to %s...", model)); err != nil {
		d.logger.Debug("failed to answer callback", "chat_id", chatID, "error", err)
	}

	result := d.engine.SelectModel(ctx, chatID, model)
	if err := d.client.EditMessageText(ctx, chatID, cb.Message.MessageID, result); err != nil {
		d.logger.Error("failed to edit message after model selection", "chat_id", chatID, "error", err)
		d.reply(ctx, chatID, result)
	}
}

// handlePhoto downloads the largest rendition, derives the mime type
// from the file extension and hands caption-then-image parts to the
// engine.
func (d *Dispatcher) handlePhoto(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID

	if err := d.client.SendChatAction(ctx, chatID, "typing"); err != nil {
		d.logger.Debug("failed to send chat action", "chat_id", chatID, "error", err)
	}

	// Renditions arrive smallest first.
	largest := msg.Photo[len(msg.Photo)-1]
	file, err := d.client.GetFile(ctx, largest.FileID)
	if err != nil {
		d.logger.Error("failed to resolve photo file", "chat_id", chatID, "error", err)
		d.reply(ctx, chatID, "Sorry, I couldn't retrieve the photo information from Telegram.")
		return
	}

	data, err := d.client.DownloadFile(ctx, file.FilePath)
	if err != nil {
		d.logger.Error("failed to download photo", "chat_id", chatID, "error", err)
		d.reply(ctx, chatID, "Sorry, I encountered an error processing the image.")
		return
	}

	var parts []chat.Part
	if msg.Caption != "" {
		parts = append(parts, chat.TextPart(msg.Caption))
	}
	parts = append(parts, chat.ImagePart(mimeFromPath(file.FilePath), msg.Caption, data))

	d.engine.HandleMessage(ctx, chatID, parts)
}

func mimeFromPath(path string) string {
	dot := strings.LastIndex(path, ".")
	if dot < 0 {
		return "image/jpeg"
	}
	switch strings.ToLower(path[dot+1:]) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/jpeg"
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if _, err := d.client.SendMessage(ctx, SendMessageRequest{ChatID: chatID, Text: text}); err != nil {
		d.logger.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func updateChatID(update Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}
