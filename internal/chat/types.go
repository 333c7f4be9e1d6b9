// ABOUTME: Core conversation data model shared by the store, provider and engine
// ABOUTME: Defines Turn, Role and the tagged Part variant (text, image, function call/response)

package chat

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether the role is one the history protocol understands.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// PartType discriminates the Part variant.
type PartType string

const (
	PartText             PartType = "text"
	PartImage            PartType = "image"
	PartFunctionCall     PartType = "function_call"
	PartFunctionResponse PartType = "function_response"
)

// FunctionCall is a model-issued tool invocation.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse is a tool result fed back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// Part is one content fragment within a turn. Exactly one branch is
// populated, selected by Type. Image bytes live only in Data for the
// duration of a request; they are never persisted (see MarshalJSON).
type Part struct {
	Type PartType `json:"type"`

	Text string `json:"text,omitempty"`

	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Data     []byte `json:"-"`

	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart builds an image part carrying raw bytes for the provider call.
// Only the mime type and caption survive persistence.
func ImagePart(mimeType, caption string, data []byte) Part {
	return Part{Type: PartImage, MimeType: mimeType, Caption: caption, Data: data}
}

// Placeholder returns the synthetic text a persisted part reconstructs to
// when it cannot be replayed verbatim. Text parts return their text; image
// parts return "[Image: <mime>]" with an optional caption clause.
func (p Part) Placeholder() string {
	switch p.Type {
	case PartText:
		return p.Text
	case PartImage:
		mime := p.MimeType
		if mime == "" {
			mime = "image"
		}
		s := fmt.Sprintf("[Image: %s]", mime)
		if p.Caption != "" {
			s += fmt.Sprintf(" (Caption: %s)", p.Caption)
		}
		return s
	case PartFunctionCall:
		if p.FunctionCall != nil {
			return fmt.Sprintf("[Function call: %s]", p.FunctionCall.Name)
		}
	case PartFunctionResponse:
		if p.FunctionResponse != nil {
			return fmt.Sprintf("[Function response: %s]", p.FunctionResponse.Name)
		}
	}
	return ""
}

// Turn is one role-tagged entry in a chat's history, addressed by
// (ChatID, Index). Index is dense, zero-based and assigned by the engine,
// not the store, so a retried save lands on the same slot.
type Turn struct {
	ChatID int64  `json:"-"`
	Index  int    `json:"-"`
	Role   Role   `json:"role"`
	Parts  []Part `json:"parts"`
}

// EncodeParts serializes parts for persistence. Image bytes are dropped;
// only the placeholder metadata is kept.
func EncodeParts(parts []Part) ([]byte, error) {
	if parts == nil {
		parts = []Part{}
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encoding parts: %w", err)
	}
	return data, nil
}

// DecodeParts parses a persisted parts payload. Unknown part types are
// kept as-is so a newer writer does not break an older reader; a payload
// that is not a JSON array is an error.
func DecodeParts(data []byte) ([]Part, error) {
	if len(data) == 0 {
		return []Part{}, nil
	}
	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("decoding parts: %w", err)
	}
	return parts, nil
}
