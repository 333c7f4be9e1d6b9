// ABOUTME: Conversation orchestrator tying store, quota gate and AI provider together
// ABOUTME: One entry point per inbound message plus the settings operations behind commands

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/genai"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/store"
)

// Config carries the orchestrator's tunables.
type Config struct {
	// DefaultAPIKey backs chats that never set their own key. May be empty.
	DefaultAPIKey string
	// MessageLimit caps messages for default-key chats. Zero or below disables it.
	MessageLimit int
	// PendingTTL bounds how long an API key prompt stays armed.
	PendingTTL time.Duration
}

// Service orchestrates one conversational exchange end to end: quota,
// client resolution, history replay, the provider round trip, history
// reconciliation and the outgoing reply. Everything user-visible goes
// out through the Transport; persistence failures after a successful
// provider call never suppress the reply.
type Service struct {
	store     store.Store
	resolver  ClientResolver
	transport Transport
	pending   *Pending
	quota     *QuotaGate
	cfg       Config
	logger    *slog.Logger
}

// New builds a Service.
func New(st store.Store, resolver ClientResolver, transport Transport, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		resolver:  resolver,
		transport: transport,
		pending:   NewPending(cfg.PendingTTL),
		quota:     NewQuotaGate(st, cfg.MessageLimit, logger),
		cfg:       cfg,
		logger:    logger.With("component", "session"),
	}
}

// HandleMessage runs the full flow for one inbound non-command message.
// The parts are the already-assembled user input (text, or caption plus
// image). All outcomes, success or failure, are reported to the chat.
func (s *Service) HandleMessage(ctx context.Context, chatID int64, parts []chat.Part) {
	logger := s.logger.With("chat_id", chatID, "request_id", uuid.NewString())

	if s.pending.Consume(chatID) {
		s.handleKeyInput(ctx, chatID, parts, logger)
		return
	}

	if len(parts) == 0 {
		s.send(ctx, chatID, "Please send some text to chat!", FormatPlain)
		return
	}

	settings, err := s.store.Settings(ctx, chatID)
	if err != nil {
		logger.Error("failed to fetch settings", "error", err)
		s.send(ctx, chatID, "Error fetching your settings from the database.", FormatPlain)
		return
	}

	decision := s.quota.Allow(ctx, settings)
	if !decision.Allowed {
		s.send(ctx, chatID, decision.Reason, FormatPlain)
		return
	}
	if decision.Notice != "" {
		s.send(ctx, chatID, decision.Notice, FormatPlain)
	}

	apiKey := settings.APIKey
	if apiKey == "" {
		apiKey = s.cfg.DefaultAPIKey
	}
	if apiKey == "" {
		s.send(ctx, chatID, "AI service not available. The bot's default API key is missing, "+
			"and you haven't set your own.\n\nPlease use /set_api_key to provide your key.", FormatPlain)
		return
	}

	provider, err := s.resolver.Resolve(apiKey)
	if err != nil {
		logger.Error("failed to initialize provider client", "error", err)
		s.send(ctx, chatID, fmt.Sprintf(
			"Failed to initialize AI client with the provided API key (starts with %s). "+
				"Please check your key using /current_settings or try setting it again with /set_api_key.",
			keyPrefix(apiKey)), FormatPlain)
		return
	}

	history, err := s.store.History(ctx, chatID)
	if err != nil {
		logger.Error("failed to fetch history", "error", err)
		s.send(ctx, chatID, "Error fetching chat history from the database.", FormatPlain)
		return
	}

	model := settings.Model
	sess, err := provider.StartChat(ctx, model, history)
	if err != nil {
		if genai.IsNotFound(err) {
			logger.Warn("selected model not available", "model", model, "error", err)
			s.send(ctx, chatID, fmt.Sprintf(
				"The selected model %s is not available or supported for conversations with your API key.\n\n"+
					"Please use /select_model to choose a different model.", model), FormatMarkdown)
			return
		}
		logger.Error("failed to start chat session", "model", model, "error", err)
		s.send(ctx, chatID, fmt.Sprintf(
			"An error occurred while starting the conversation with model %s: %s",
			model, truncate(err.Error(), 200)), FormatPlain)
		return
	}

	logger.Info("sending message to provider", "model", model, "history_len", len(history))
	reply, err := sess.Send(ctx, parts)
	if err != nil {
		classified := genai.Classify(err, model)
		logger.Error("provider call failed", "kind", classified.Kind.String(), "error", err)
		text := classified.UserMessage
		switch classified.Kind {
		case genai.KindRateLimited, genai.KindSafetyBlocked, genai.KindBadRequest:
			text += "\n\nUse a different model by using the /select_model command."
		}
		s.send(ctx, chatID, text, FormatMarkdown)
		return
	}

	s.reconcileHistory(ctx, chatID, len(history), parts, sess.History(), logger)
	s.send(ctx, chatID, s.replyText(reply, logger), FormatMarkdown)
}

// reconcileHistory persists the turns the provider session gained during
// the round trip. The user turn is saved from the locally assembled
// parts, not the provider's echo, so image placeholders and captions
// survive exactly as constructed. Failures are logged and swallowed;
// the reply must still go out.
func (s *Service) reconcileHistory(ctx context.Context, chatID int64, oldLen int, sent []chat.Part, after []chat.Turn, logger *slog.Logger) {
	newLen := len(after)
	switch {
	case newLen >= oldLen+2:
		userTurn := chat.Turn{ChatID: chatID, Index: oldLen, Role: chat.RoleUser, Parts: sent}
		if err := s.store.SaveTurn(ctx, userTurn); err != nil {
			logger.Error("failed to save user turn", "index", oldLen, "error", err)
		}
		modelTurn := chat.Turn{ChatID: chatID, Index: oldLen + 1, Role: chat.RoleModel, Parts: after[newLen-1].Parts}
		if err := s.store.SaveTurn(ctx, modelTurn); err != nil {
			logger.Error("failed to save model turn", "index", oldLen+1, "error", err)
		}
	case newLen == oldLen+1 && after[newLen-1].Role == chat.RoleUser:
		// Prompt was accepted but no model turn came back (blocked response).
		logger.Warn("history grew by one turn, saving user turn only", "index", oldLen)
		userTurn := chat.Turn{ChatID: chatID, Index: oldLen, Role: chat.RoleUser, Parts: sent}
		if err := s.store.SaveTurn(ctx, userTurn); err != nil {
			logger.Error("failed to save user turn", "index", oldLen, "error", err)
		}
	case newLen > oldLen:
		logger.Warn("unexpected history growth, nothing saved", "old_len", oldLen, "new_len", newLen)
	default:
		logger.Warn("history did not grow, nothing to save")
	}
}

// replyText derives the outgoing message from a provider reply:
// direct text first, then text gathered from candidate parts, then a
// description of function-call traffic, then block-reason text.
func (s *Service) replyText(reply *genai.Reply, logger *slog.Logger) string {
	if reply.Text != "" {
		return reply.Text
	}

	var texts []string
	var calls []*chat.FunctionCall
	sawResponse := false
	for _, candidate := range reply.Candidates {
		for _, part := range candidate {
			switch {
			case part.Type == chat.PartText && part.Text != "":
				texts = append(texts, part.Text)
			case part.FunctionCall != nil:
				calls = append(calls, part.FunctionCall)
			case part.FunctionResponse != nil:
				sawResponse = true
			}
		}
	}

	switch {
	case len(texts) > 0:
		return strings.Join(texts, "")
	case len(calls) > 0:
		var b strings.Builder
		b.WriteString("Model wants to call a function:")
		for _, call := range calls {
			args, _ := json.Marshal(call.Args)
			fmt.Fprintf(&b, "\n- `%s(%s)`", call.Name, args)
		}
		return b.String()
	case sawResponse:
		return "Model received a function response."
	case len(reply.Candidates) > 0:
		logger.Warn("candidates carried no recognizable parts")
		return "Received a non-text response from candidates without recognizable parts."
	case reply.BlockReason != "":
		logger.Warn("response blocked", "reason", reply.BlockReason)
		return genai.ClassifyBlockReason(reply.BlockReason).UserMessage
	default:
		logger.Warn("empty provider response")
		return "Could not get a valid response from the model."
	}
}

// handleKeyInput treats the message as the API key the chat was asked
// for. The pending flag is already consumed; a bad key means the user
// must run /set_api_key again.
func (s *Service) handleKeyInput(ctx context.Context, chatID int64, parts []chat.Part, logger *slog.Logger) {
	var key string
	for _, p := range parts {
		if p.Type == chat.PartText {
			key = strings.TrimSpace(p.Text)
			break
		}
	}
	if key == "" {
		logger.Warn("empty api key submitted")
		s.send(ctx, chatID, "API key cannot be empty.", FormatPlain)
		return
	}

	logger.Info("validating submitted api key", "key_prefix", keyPrefix(key))
	provider, err := s.resolver.Resolve(key)
	if err == nil {
		_, err = provider.ListModels(ctx)
	}
	if err != nil {
		logger.Error("api key validation failed", "error", err)
		if genai.IsPermissionDenied(err) {
			s.send(ctx, chatID, "Failed to validate API key: Permission Denied. "+
				"Check if the key is correct and enabled for the Gemini API.", FormatPlain)
			return
		}
		s.send(ctx, chatID, "Failed to set API key: could not initialize the AI client or connect "+
			"to the service. Check your key.\n\nTry /set_api_key again or /cancel.", FormatPlain)
		return
	}

	settings, err := s.store.Settings(ctx, chatID)
	if err != nil {
		logger.Error("failed to fetch settings before key save", "error", err)
		s.send(ctx, chatID, "Error fetching your settings before saving the key.", FormatPlain)
		return
	}

	zero := 0
	if err := s.store.SaveSettings(ctx, chatID, key, settings.Model, &zero); err != nil {
		logger.Error("failed to save api key", "error", err)
		s.send(ctx, chatID, "Failed to save your API key to the database.", FormatPlain)
		return
	}
	if err := s.store.ClearHistory(ctx, chatID); err != nil {
		logger.Error("failed to clear history after key change", "error", err)
	}
	logger.Info("custom api key set")
	s.send(ctx, chatID, "Your Gemini API key has been set successfully! Your chat history has been reset.", FormatPlain)
}

// BeginKeyEntry arms the awaiting-key flag and returns the prompt text.
func (s *Service) BeginKeyEntry(chatID int64) string {
	s.pending.Begin(chatID)
	s.logger.Info("awaiting api key input", "chat_id", chatID)
	return "Okay, please send me your Google Gemini API key now.\n" +
		"You can get your API key from Google AI Studio:\n" +
		"1. Go to https://aistudio.google.com/app/apikey\n" +
		"2. Create a new API key (or use an existing one).\n" +
		"3. Copy the key and paste it into a reply message here.\n\n" +
		"Your API key will be stored securely and used only for your interactions. " +
		"Setting a new key resets chat history and message count.\n\n" +
		"Send /cancel to abort."
}

// Cancel aborts a pending key entry, if any.
func (s *Service) Cancel(chatID int64) string {
	if s.pending.Cancel(chatID) {
		s.logger.Info("api key input cancelled", "chat_id", chatID)
		return "Operation cancelled (set API key)."
	}
	return "No active operation to cancel."
}

// Reset clears the chat's stored history.
func (s *Service) Reset(ctx context.Context, chatID int64) string {
	if err := s.store.ClearHistory(ctx, chatID); err != nil {
		s.logger.Error("failed to clear history", "chat_id", chatID, "error", err)
		return "Failed to clear your chat history in the database."
	}
	s.logger.Info("chat history cleared", "chat_id", chatID)
	return "Chat history cleared."
}

// ClearAPIKey reverts the chat to the bot's default key, resetting the
// counter and history.
func (s *Service) ClearAPIKey(ctx context.Context, chatID int64) string {
	settings, err := s.store.Settings(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to fetch settings", "chat_id", chatID, "error", err)
		return "Error fetching your settings from the database."
	}
	if settings.APIKey == "" {
		return "You are already using the bot's default API key."
	}
	if s.cfg.DefaultAPIKey == "" {
		return "The bot does not have a default API key configured. " +
			"You must provide your own via /set_api_key."
	}

	zero := 0
	if err := s.store.SaveSettings(ctx, chatID, "", settings.Model, &zero); err != nil {
		s.logger.Error("failed to clear api key", "chat_id", chatID, "error", err)
		return "Failed to clear your custom API key in the database."
	}
	if err := s.store.ClearHistory(ctx, chatID); err != nil {
		s.logger.Error("failed to clear history after key clear", "chat_id", chatID, "error", err)
	}
	s.logger.Info("custom api key cleared", "chat_id", chatID)
	return "Cleared your custom API key. Using the bot's default key now. Your chat history has been reset."
}

// SelectModel switches the chat's model, resetting the counter and
// history. Selecting the current model is a no-op.
func (s *Service) SelectModel(ctx context.Context, chatID int64, model string) string {
	settings, err := s.store.Settings(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to fetch settings", "chat_id", chatID, "error", err)
		return "Error fetching your settings. Cannot set model."
	}
	if settings.Model == model {
		return fmt.Sprintf("Model is already set to %s.", model)
	}

	zero := 0
	if err := s.store.SaveSettings(ctx, chatID, settings.APIKey, model, &zero); err != nil {
		s.logger.Error("failed to save model selection", "chat_id", chatID, "model", model, "error", err)
		return "Failed to set the model in the database."
	}
	if err := s.store.ClearHistory(ctx, chatID); err != nil {
		s.logger.Error("failed to clear history after model change", "chat_id", chatID, "error", err)
	}
	s.logger.Info("model selected", "chat_id", chatID, "model", model)
	return fmt.Sprintf("Model set to %s successfully! Your chat history has been reset.", model)
}

// CurrentSettings renders the chat's active configuration.
func (s *Service) CurrentSettings(ctx context.Context, chatID int64) string {
	settings, err := s.store.Settings(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to fetch settings", "chat_id", chatID, "error", err)
		return "Error fetching your settings from the database."
	}

	keyStatus := "Using bot's default API key"
	switch {
	case settings.APIKey != "":
		keyStatus = fmt.Sprintf("Using your custom API key: %s", maskKey(settings.APIKey))
	case s.cfg.DefaultAPIKey == "":
		keyStatus = "No API key available. Bot's default is missing, and you haven't set your own.\n" +
			"Please use /set_api_key to provide your key."
	}

	var b strings.Builder
	b.WriteString("Your Current Settings:\n")
	fmt.Fprintf(&b, "API Key: %s\n", keyStatus)
	fmt.Fprintf(&b, "Model: %s\n", settings.Model)
	if settings.APIKey == "" && s.cfg.MessageLimit > 0 {
		fmt.Fprintf(&b, "Messages Used (Default Key): %d / %d\n", settings.MessageCount, s.cfg.MessageLimit)
		if settings.MessageCount >= s.cfg.MessageLimit {
			b.WriteString("  (Limit reached. Use /set_api_key for unlimited messages.)\n")
		}
	}
	return b.String()
}

// AvailableModels fetches the conversational models reachable with the
// chat's active key. The second return value is user-facing failure
// text, empty on success.
func (s *Service) AvailableModels(ctx context.Context, chatID int64) ([]genai.ModelInfo, string) {
	settings, err := s.store.Settings(ctx, chatID)
	if err != nil {
		s.logger.Error("failed to fetch settings", "chat_id", chatID, "error", err)
		return nil, "Error fetching your settings from the database."
	}

	apiKey := settings.APIKey
	if apiKey == "" {
		apiKey = s.cfg.DefaultAPIKey
	}
	if apiKey == "" {
		return nil, "AI service not available. The bot's default API key is missing, " +
			"and you haven't set your own.\n\nPlease use /set_api_key to provide your key."
	}

	provider, err := s.resolver.Resolve(apiKey)
	if err == nil {
		var models []genai.ModelInfo
		models, err = provider.ListModels(ctx)
		if err == nil {
			models = genai.FilterCurated(models)
			if len(models) == 0 {
				return nil, "No generative models found with your current API key."
			}
			return models, ""
		}
	}
	s.logger.Error("failed to list models", "chat_id", chatID, "error", err)
	return nil, "Could not fetch available models with your current API key. " +
		"Check /current_settings or try /set_api_key."
}

func (s *Service) send(ctx context.Context, chatID int64, text string, format Format) {
	if err := s.transport.Send(ctx, chatID, text, format); err != nil {
		s.logger.Error("failed to deliver message", "chat_id", chatID, "error", err)
	}
}

func keyPrefix(key string) string {
	if len(key) < 4 {
		return key
	}
	return key[:4]
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
