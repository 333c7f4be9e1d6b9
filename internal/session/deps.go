// ABOUTME: Collaborator interfaces the engine depends on
// ABOUTME: Transport, Provider and ChatSession are satisfied by internal/bot and internal/genai

package session

import (
	"context"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
	"github.com/mohamadghaffari/gemini-tel-bot/internal/genai"
)

// Format hints how the transport should render outgoing text.
type Format int

const (
	FormatPlain Format = iota
	FormatMarkdown
)

// Transport is the chat-transport collaborator. The engine only ever
// pushes text out through it; ingestion is the transport's own business.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string, format Format) error
}

// ChatSession is one open provider conversation.
type ChatSession interface {
	Send(ctx context.Context, parts []chat.Part) (*genai.Reply, error)
	History() []chat.Turn
}

// Provider is the generative-AI collaborator for one credential.
type Provider interface {
	ListModels(ctx context.Context) ([]genai.ModelInfo, error)
	StartChat(ctx context.Context, model string, history []chat.Turn) (ChatSession, error)
}

// ClientResolver hands out a Provider for an API key. The production
// implementation wraps the genai client cache.
type ClientResolver interface {
	Resolve(apiKey string) (Provider, error)
}

// CacheResolver adapts *genai.ClientCache to ClientResolver.
type CacheResolver struct {
	Cache *genai.ClientCache
}

// Resolve returns a cached provider for the key.
func (r *CacheResolver) Resolve(apiKey string) (Provider, error) {
	client, err := r.Cache.Get(apiKey)
	if err != nil {
		return nil, err
	}
	return clientProvider{client}, nil
}

// clientProvider narrows *genai.Client to the Provider interface.
type clientProvider struct {
	client *genai.Client
}

func (p clientProvider) ListModels(ctx context.Context) ([]genai.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

func (p clientProvider) StartChat(ctx context.Context, model string, history []chat.Turn) (ChatSession, error) {
	return p.client.StartChat(ctx, model, history)
}
