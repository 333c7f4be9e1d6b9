// ABOUTME: Client-side chat session over the stateless generateContent endpoint
// ABOUTME: Tracks conversation history so callers can reconcile growth after each exchange

package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mohamadghaffari/gemini-tel-bot/internal/chat"
)

// Chat is a conversation session. The generateContent endpoint is
// stateless, so the session holds the history locally: every Send submits
// the full contents and, on success, appends the new user turn and — when
// the model actually answered — the new model turn.
//
// The history-growth contract callers rely on:
//   - a normal exchange grows History() by 2 (user, then model)
//   - a blocked prompt grows it by 1 (user only)
//   - a failed call grows it by 0
type Chat struct {
	client  *Client
	model   string
	history []chat.Turn
}

// Reply is the outcome of one Send.
type Reply struct {
	// Text is the concatenated text of the first candidate, empty when the
	// model returned no direct text.
	Text string
	// Candidates holds each candidate's parts for callers that need to
	// scan beyond the direct text.
	Candidates [][]chat.Part
	// BlockReason is set when the prompt was rejected by safety filters on
	// an otherwise-successful response.
	BlockReason string
}

// History returns the session's full turn list, including any exchange
// appended by a completed Send. Callers must not mutate the result.
func (ch *Chat) History() []chat.Turn {
	return ch.history
}

// wire request/response shapes for generateContent
type (
	wireContent struct {
		Role  string     `json:"role,omitempty"`
		Parts []wirePart `json:"parts"`
	}

	wirePart struct {
		Text             string        `json:"text,omitempty"`
		InlineData       *wireBlob     `json:"inlineData,omitempty"`
		FunctionCall     *wireFunction `json:"functionCall,omitempty"`
		FunctionResponse *wireFunction `json:"functionResponse,omitempty"`
	}

	wireBlob struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"` // base64
	}

	wireFunction struct {
		Name     string         `json:"name"`
		Args     map[string]any `json:"args,omitempty"`
		Response map[string]any `json:"response,omitempty"`
	}

	generateRequest struct {
		Contents []wireContent `json:"contents"`
	}

	generateResponse struct {
		Candidates []struct {
			Content      wireContent `json:"content"`
			FinishReason string      `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
)

// Send submits the user's parts on top of the session history. On success
// the session history is extended per the growth contract; on error it is
// left untouched so a retry re-submits the same state.
func (ch *Chat) Send(ctx context.Context, parts []chat.Part) (*Reply, error) {
	userContent := wireContent{Role: "user", Parts: toWireParts(parts)}

	req := generateRequest{Contents: make([]wireContent, 0, len(ch.history)+1)}
	for _, turn := range ch.history {
		req.Contents = append(req.Contents, wireContent{
			Role:  string(turn.Role),
			Parts: toWireParts(turn.Parts),
		})
	}
	req.Contents = append(req.Contents, userContent)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding generate request: %w", err)
	}

	var resp generateResponse
	endpoint := ch.client.baseURL + "/" + ch.model + ":generateContent"
	if err := ch.client.post(ctx, endpoint, bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}

	// The request reached the model: the user turn is part of the
	// conversation now even if the answer was withheld.
	ch.history = append(ch.history, chat.Turn{Role: chat.RoleUser, Parts: parts})

	reply := &Reply{BlockReason: resp.PromptFeedback.BlockReason}
	for _, cand := range resp.Candidates {
		reply.Candidates = append(reply.Candidates, fromWireParts(cand.Content.Parts))
	}

	if len(resp.Candidates) > 0 {
		modelParts := fromWireParts(resp.Candidates[0].Content.Parts)
		ch.history = append(ch.history, chat.Turn{Role: chat.RoleModel, Parts: modelParts})

		var text bytes.Buffer
		for _, p := range modelParts {
			if p.Type == chat.PartText {
				text.WriteString(p.Text)
			}
		}
		reply.Text = text.String()
	}

	return reply, nil
}

// toWireParts converts engine parts to the provider representation. Image
// parts whose bytes were dropped by persistence are replayed as their
// placeholder text, matching how the history was reconstructed.
func toWireParts(parts []chat.Part) []wirePart {
	wire := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case chat.PartText:
			wire = append(wire, wirePart{Text: p.Text})
		case chat.PartImage:
			if len(p.Data) > 0 {
				wire = append(wire, wirePart{InlineData: &wireBlob{
					MimeType: p.MimeType,
					Data:     base64.StdEncoding.EncodeToString(p.Data),
				}})
			} else {
				wire = append(wire, wirePart{Text: p.Placeholder()})
			}
		case chat.PartFunctionCall:
			if p.FunctionCall != nil {
				wire = append(wire, wirePart{FunctionCall: &wireFunction{
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}})
			}
		case chat.PartFunctionResponse:
			if p.FunctionResponse != nil {
				wire = append(wire, wirePart{FunctionResponse: &wireFunction{
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				}})
			}
		}
	}
	return wire
}

// fromWireParts converts provider parts back to engine parts.
func fromWireParts(wire []wirePart) []chat.Part {
	parts := make([]chat.Part, 0, len(wire))
	for _, w := range wire {
		switch {
		case w.FunctionCall != nil:
			parts = append(parts, chat.Part{
				Type:         chat.PartFunctionCall,
				FunctionCall: &chat.FunctionCall{Name: w.FunctionCall.Name, Args: w.FunctionCall.Args},
			})
		case w.FunctionResponse != nil:
			parts = append(parts, chat.Part{
				Type:             chat.PartFunctionResponse,
				FunctionResponse: &chat.FunctionResponse{Name: w.FunctionResponse.Name, Response: w.FunctionResponse.Response},
			})
		case w.InlineData != nil:
			data, err := base64.StdEncoding.DecodeString(w.InlineData.Data)
			if err != nil {
				data = nil
			}
			parts = append(parts, chat.ImagePart(w.InlineData.MimeType, "", data))
		default:
			parts = append(parts, chat.TextPart(w.Text))
		}
	}
	return parts
}
