package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/genai"
)

type fakeEngine struct {
	handledChat  int64
	handledParts []chat.Part
	handleCalls  int
	panicOnce    bool

	selectedModel string
	models        []genai.ModelInfo
	modelsErrText string
}

func (f *fakeEngine) HandleMessage(ctx context.Context, chatID int64, parts []chat.Part) {
	f.handleCalls++
	f.handledChat = chatID
	f.handledParts = parts
	if f.panicOnce {
		f.panicOnce = false
		panic("boom")
	}
}

func (f *fakeEngine) BeginKeyEntry(chatID int64) string { return "send me your key" }
func (f *fakeEngine) Cancel(chatID int64) string        { return "No active operation to cancel." }
func (f *fakeEngine) Reset(ctx context.Context, chatID int64) string {
	return "Chat history cleared."
}
func (f *fakeEngine) ClearAPIKey(ctx context.Context, chatID int64) string {
	return "Cleared your custom API key."
}
func (f *fakeEngine) SelectModel(ctx context.Context, chatID int64, model string) string {
	f.selectedModel = model
	return fmt.Sprintf("Model set to %s successfully!", model)
}
func (f *fakeEngine) CurrentSettings(ctx context.Context, chatID int64) string {
	return "Your Current Settings:"
}
func (f *fakeEngine) AvailableModels(ctx context.Context, chatID int64) ([]genai.ModelInfo, string) {
	return f.models, f.modelsErrText
}

type apiCall struct {
	method string
	params map[string]any
}

// apiRecorder fakes the Bot API and remembers every call.
type apiRecorder struct {
	mu    sync.Mutex
	calls []apiCall
}

func (r *apiRecorder) handler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/file/") {
			w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
			return
		}

		method := req.URL.Path[strings.LastIndex(req.URL.Path, "/")+1:]
		var params map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&params))

		r.mu.Lock()
		r.calls = append(r.calls, apiCall{method: method, params: params})
		r.mu.Unlock()

		switch method {
		case "sendMessage":
			okResult(w, `{"message_id":1,"chat":{"id":42}}`)
		case "getFile":
			okResult(w, `{"file_id":"photo-1","file_path":"photos/pic.png"}`)
		default:
			okResult(w, `true`)
		}
	})
}

func (r *apiRecorder) byMethod(method string) []apiCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []apiCall
	for _, c := range r.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (r *apiRecorder) lastText(t *testing.T, method string) string {
	t.Helper()
	calls := r.byMethod(method)
	require.NotEmpty(t, calls)
	text, _ := calls[len(calls)-1].params["text"].(string)
	return text
}

func newTestDispatcher(t *testing.T, engine *fakeEngine) (*Dispatcher, *apiRecorder) {
	t.Helper()
	recorder := &apiRecorder{}
	srv := httptest.NewServer(recorder.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient("123:token", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return NewDispatcher(client, engine, nil), recorder
}

func textUpdate(chatID int64, text string) Update {
	return Update{
		UpdateID: 1,
		Message:  &Message{MessageID: 10, Chat: Chat{ID: chatID}, Text: text},
	}
}

func TestDispatcher_ResetCommand(t *testing.T) {
	engine := &fakeEngine{}
	d, recorder := newTestDispatcher(t, engine)

	d.HandleUpdate(context.Background(), textUpdate(42, "/reset"))

	assert.Equal(t, "Chat history cleared.", recorder.lastText(t, "sendMessage"))
}

func TestDispatcher_CommandWithBotSuffix(t *testing.T) {
	engine := &fakeEngine{}
	d, recorder := newTestDispatcher(t, engine)

	d.HandleUpdate(context.Background(), textUpdate(42, "/reset@my_bot"))

	assert.Equal(t, "Chat history cleared.", recorder.lastText(t, "sendMessage"))
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	engine := &fakeEngine{}
	d, recorder := newTestDispatcher(t, engine)

	d.HandleUpdate(context.Background(), textUpdate(42, "/frobnicate"))

	assert.Contains(t, recorder.lastText(t, "sendMessage"), "Unknown command")
	assert.Equal(t, 0, engine.handleCalls)
}

func TestDispatcher_HelpShowsCommands(t *testing.T) {
	engine := &fakeEngine{}
	d, recorder := newTestDispatcher(t, engine)

	d.HandleUpdate(context.Background(), textUpdate(42, "/help"))

	text := recorder.lastText(t, "sendMessage")
	assert.Contains(t, text, "/set_api_key")
	assert.Contains(t, text, "/select_model")
}

func TestDispatcher_TextMessageReachesEngine(t *testing.T) {
	engine := &fakeEngine{}
	d, recorder := newTestDispatcher(t, engine)

	d.HandleUpdate(context.Background(), textUpdate(42, "hello there"))

	assert.Equal(t, int64(42), engine.handledChat)
	require.Len(t, engine.handledParts, 1)
	assert.Equal(t, "hello there", engine.handledParts[0].Text)

	// A typing indicator went out before the engine ran.
	assert.NotEmpty(t, recorder.byMethod("sendChatAction"))
}

func TestDispatcher_PhotoMessageAssemblesParts(t *testing.T) {
	engine := &fakeEngine{}
	d, _ := newTestDispatcher(t, engine)

	update := Update{
		UpdateID: 2,
		Message: &Message{
			MessageID: 11,
			Chat:      Chat{ID: 42},
			Caption:   "what is this?",
			Photo: []PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "large", Width: 800, Height: 800},
			},
		},
	}
	d.HandleUpdate(context.Background(), update)

	require.Len(t, engine.handledParts, 2)
	assert.Equal(t, chat.PartText, engine.handledParts[0].Type)
	assert.Equal(t, "what is this?", engine.handledParts[0].Text)

	image := engine.handledParts[1]
	assert.Equal(t, chat.PartImage, image.Type)
	assert.Equal(t, "image/png", image.MimeType)
	assert.Equal(t, "what is this?", image.Caption)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, image.Data)
}

func TestDispatcher_UnsupportedContent(t *testing.T) {
	engine := &fakeEngine{}
	d, recorder := newTestDispatcher(t, engine)

	update := Update{
		UpdateID: 3,
		Message:  &Message{MessageID: 12, Chat: Chat{ID: 42}, Sticker: &Sticker{FileID: "st"}},
	}
	d.HandleUpdate(context.Background(), update)

	assert.Contains(t, recorder.lastText(t, "sendMessage"), "only process text and photos")
	assert.Equal(t, 0, engine.handleCalls)
}

func TestDispatcher_SelectModelSendsKeyboard(t *testing.T) {
	engine := &fakeEngine{models: []genai.ModelInfo{
		{Name: "models/gemini-2.0-flash"},
		{Name: "models/" + strings.Repeat("x", 80)}, // callback data would exceed 64 bytes
	}}
	d, recorder := newTestDispatcher(t, engine)

	d.HandleUpdate(context.Background(), textUpdate(42, "/select_model"))

	calls := recorder.byMethod("sendMessage")
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.Equal(t, "Please select a model:", last.params["text"])

	markup, err := json.Marshal(last.params["reply_markup"])
	require.NoError(t, err)
	assert.Contains(t, string(markup), "set_model:models/gemini-2.0-flash")
	assert.NotContains(t, string(markup), strings.Repeat("x", 80))
}

func TestDispatcher_ListModelsFailure(t *testing.T) {
	engine := &fakeEngine{modelsErrText: "Could not fetch available models with your current API key."}
	d, recorder := newTestDispatcher(t, engine)

	d.HandleUpdate(context.Background(), textUpdate(42, "/list_models"))

	assert.Contains(t, recorder.lastText(t, "sendMessage"), "Could not fetch available models")
}

func TestDispatcher_ModelSelectionCallback(t *testing.T) {
	engine := &fakeEngine{}
	d, recorder := newTestDispatcher(t, engine)

	update := Update{
		UpdateID: 4,
		CallbackQuery: &CallbackQuery{
			ID:      "cb-1",
			Data:    "set_model:models/gemini-1.5-pro",
			Message: &Message{MessageID: 77, Chat: Chat{ID: 42}},
		},
	}
	d.HandleUpdate(context.Background(), update)

	assert.Equal(t, "models/gemini-1.5-pro", engine.selectedModel)
	assert.NotEmpty(t, recorder.byMethod("answerCallbackQuery"))

	edits := recorder.byMethod("editMessageText")
	require.Len(t, edits, 1)
	assert.Equal(t, float64(77), edits[0].params["message_id"])
	assert.Contains(t, edits[0].params["text"], "successfully")
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	engine := &fakeEngine{panicOnce: true}
	d, recorder := newTestDispatcher(t, engine)

	d.HandleUpdate(context.Background(), textUpdate(42, "trigger"))

	assert.Contains(t, recorder.lastText(t, "sendMessage"), "unexpected error")

	// The dispatcher stays usable afterwards.
	d.HandleUpdate(context.Background(), textUpdate(42, "again"))
	assert.Equal(t, 2, engine.handleCalls)
}
