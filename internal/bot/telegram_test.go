package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPIClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("123:token", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func okResult(w http.ResponseWriter, result string) {
	fmt.Fprintf(w, `{"ok":true,"result":%s}`, result)
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestGetUpdates(t *testing.T) {
	var gotPath string
	var gotParams map[string]any
	c := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotParams))
		okResult(w, `[{"update_id":7,"message":{"message_id":1,"chat":{"id":42},"text":"hi"}}]`)
	}))

	updates, err := c.GetUpdates(context.Background(), 5, 30)
	require.NoError(t, err)

	assert.Equal(t, "/bot123:token/getUpdates", gotPath)
	assert.Equal(t, float64(5), gotParams["offset"])
	assert.Equal(t, float64(30), gotParams["timeout"])

	require.Len(t, updates, 1)
	assert.Equal(t, int64(7), updates[0].UpdateID)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, int64(42), updates[0].Message.Chat.ID)
	assert.Equal(t, "hi", updates[0].Message.Text)
}

func TestSendMessage_APIError(t *testing.T) {
	c := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`)
	}))

	_, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 42, Text: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Contains(t, apiErr.Description, "can't parse entities")
}

func TestSendMessage_CarriesParseModeAndMarkup(t *testing.T) {
	var gotReq SendMessageRequest
	c := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		okResult(w, `{"message_id":9,"chat":{"id":42}}`)
	}))

	markup := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "a", CallbackData: "set_model:a"}},
	}}
	msg, err := c.SendMessage(context.Background(), SendMessageRequest{
		ChatID:      42,
		Text:        "<b>hi</b>",
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), msg.MessageID)
	assert.Equal(t, "HTML", gotReq.ParseMode)
	require.NotNil(t, gotReq.ReplyMarkup)
	assert.Equal(t, "set_model:a", gotReq.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestGetFile_MissingPathRejected(t *testing.T) {
	c := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okResult(w, `{"file_id":"abc"}`)
	}))

	_, err := c.GetFile(context.Background(), "abc")
	assert.Error(t, err)
}

func TestDownloadFile(t *testing.T) {
	c := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file/bot123:token/photos/pic.jpg", r.URL.Path)
		w.Write([]byte{0xff, 0xd8, 0xff})
	}))

	data, err := c.DownloadFile(context.Background(), "photos/pic.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}

func TestDownloadFile_NotFound(t *testing.T) {
	c := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))

	_, err := c.DownloadFile(context.Background(), "photos/gone.jpg")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Code)
}

func TestAnswerCallbackQuery(t *testing.T) {
	var gotParams map[string]any
	c := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotParams))
		okResult(w, `true`)
	}))

	err := c.AnswerCallbackQuery(context.Background(), "cb-1", "working")
	require.NoError(t, err)
	assert.Equal(t, "cb-1", gotParams["callback_query_id"])
}
