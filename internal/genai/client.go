// ABOUTME: HTTP client for the Gemini REST API (generativelanguage.googleapis.com)
// ABOUTME: Model listing/lookup and chat-session creation with bounded timeouts

package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 60 * time.Second
)

// ModelInfo describes one model from the provider's catalog.
type ModelInfo struct {
	Name             string   `json:"name"` // full name, e.g. "models/gemini-2.0-flash"
	DisplayName      string   `json:"displayName"`
	Description      string   `json:"description"`
	InputTokenLimit  int      `json:"inputTokenLimit"`
	OutputTokenLimit int      `json:"outputTokenLimit"`
	SupportedActions []string `json:"supportedGenerationMethods"`
}

// BaseName returns the model name without the "models/" prefix.
func (m ModelInfo) BaseName() string {
	return strings.TrimPrefix(m.Name, "models/")
}

// Client is a Gemini API client bound to one API key. Every call carries a
// bounded timeout; there are no automatic retries.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a client for the given API key.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default().With("component", "genai"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListModels returns every model the key can see, following pagination.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var models []ModelInfo
	pageToken := ""
	for {
		endpoint := c.baseURL + "/models?pageSize=100"
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}

		var page struct {
			Models        []ModelInfo `json:"models"`
			NextPageToken string      `json:"nextPageToken"`
		}
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		models = append(models, page.Models...)
		if page.NextPageToken == "" {
			return models, nil
		}
		pageToken = page.NextPageToken
	}
}

// GetModel fetches one model's descriptor. A 404 means the model does not
// exist or is not visible to this key.
func (c *Client) GetModel(ctx context.Context, model string) (*ModelInfo, error) {
	var info ModelInfo
	endpoint := c.baseURL + "/" + normalizeModelName(model)
	if err := c.get(ctx, endpoint, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StartChat opens a conversation session seeded with history. The model is
// validated up front so a bad selection fails here, not mid-conversation.
func (c *Client) StartChat(ctx context.Context, model string, history []chat.Turn) (*Chat, error) {
	if _, err := c.GetModel(ctx, model); err != nil {
		return nil, fmt.Errorf("validating model %s: %w", model, err)
	}

	copied := make([]chat.Turn, len(history))
	copy(copied, history)
	return &Chat{
		client:  c,
		model:   normalizeModelName(model),
		history: copied,
	}, nil
}

// normalizeModelName ensures the "models/" prefix the REST paths expect.
func normalizeModelName(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// get performs an authenticated GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(req, out)
}

// post performs an authenticated POST with a JSON body and decodes the
// response.
func (c *Client) post(ctx context.Context, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("gemini request failed", "url", req.URL.Path, "error", err)
		return fmt.Errorf("calling gemini api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading gemini response: %w", err)
	}

	c.logger.Debug("gemini call completed",
		"url", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding gemini response: %w", err)
		}
	}
	return nil
}
