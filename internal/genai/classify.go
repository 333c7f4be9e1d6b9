// ABOUTME: Maps opaque provider failures into a closed taxonomy with user-facing text
// ABOUTME: Defensive about the loosely-typed error-detail payloads Gemini returns

package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed provider-error taxonomy. Every failure an exchange
// can produce maps to exactly one kind; anything unrecognized is Unknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindModelNotFound
	KindSafetyBlocked
	KindBadRequest
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindModelNotFound:
		return "model_not_found"
	case KindSafetyBlocked:
		return "safety_blocked"
	case KindBadRequest:
		return "bad_request"
	case KindServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// fallbackQuotaLink is shown when the error details carry no usable
// google.rpc.Help link.
const fallbackQuotaLink = "Learn more about Gemini API quotas: https://ai.google.dev/gemini-api/docs/rate-limits"

const helpDetailType = "type.googleapis.com/google.rpc.Help"

// Classified is the result of mapping a provider failure.
type Classified struct {
	Kind        Kind
	UserMessage string
}

// Classify maps err to its kind and a message suitable for the user. The
// model name is interpolated where the original message referenced it.
// Classify never panics, whatever shape the error details take.
func Classify(err error, model string) Classified {
	if IsTimeout(err) {
		return Classified{
			Kind:        KindServerError,
			UserMessage: "The AI service did not respond in time. Please try again later.",
		}
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		return Classified{
			Kind:        KindUnknown,
			UserMessage: "An unexpected error occurred while talking to the AI service. Please try again.",
		}
	}

	switch {
	case apiErr.StatusCode == 429:
		msg := fmt.Sprintf("Your request failed due to a quota limit being reached for the selected model (`%s`).", model)
		msg += "\n\n" + extractHelpLink(apiErr.Details)
		return Classified{Kind: KindRateLimited, UserMessage: msg}

	case apiErr.StatusCode == 404:
		msg := fmt.Sprintf("The selected model `%s` is not available or supported with your API key.\n\nPlease use /select_model to choose a different model.", strings.TrimPrefix(model, "models/"))
		return Classified{Kind: KindModelNotFound, UserMessage: msg}

	case apiErr.StatusCode >= 500:
		return Classified{
			Kind:        KindServerError,
			UserMessage: fmt.Sprintf("The AI service encountered a server error (code %d). Please try again later.", apiErr.StatusCode),
		}

	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		if isBlocked(apiErr) {
			msg := "Your input or the model's response was blocked by safety filters."
			if reason := blockDetail(apiErr); reason != "" {
				msg += " Reason(s): " + reason
			}
			if mentionsLength(apiErr.Message) {
				msg += "\n\nYour conversation history or input might be too long for the model. Try using /reset."
			}
			return Classified{Kind: KindSafetyBlocked, UserMessage: msg}
		}
		return Classified{
			Kind:        KindBadRequest,
			UserMessage: fmt.Sprintf("Bad request to the AI model. Message: %s", truncate(apiErr.Message, 200)),
		}
	}

	return Classified{
		Kind:        KindUnknown,
		UserMessage: "An unexpected error occurred while talking to the AI service. Please try again.",
	}
}

// ClassifyBlockReason builds the user message for a prompt blocked on an
// otherwise-successful response (no error was raised, but no answer came
// back either).
func ClassifyBlockReason(reason string) Classified {
	msg := fmt.Sprintf("Your message was blocked by safety filters (reason: %s).", reason)
	if mentionsLength(reason) {
		msg += "\n\nYour conversation history or input might be too long for the model. Try using /reset."
	}
	return Classified{Kind: KindSafetyBlocked, UserMessage: msg}
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isBlocked(apiErr *APIError) bool {
	if apiErr.Status == "BLOCKED" {
		return true
	}
	lower := strings.ToLower(apiErr.Message)
	return strings.Contains(lower, "blocked") || strings.Contains(lower, "safety")
}

func mentionsLength(s string) bool {
	upper := strings.ToUpper(s)
	return strings.Contains(upper, "LENGTH") ||
		strings.Contains(upper, "CONTEXT") ||
		strings.Contains(upper, "TOO_LARGE")
}

func truncate(s string, max int) string {
	if s == "" {
		return "N/A"
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// blockDetail pulls field-violation descriptions out of a blocked
// request's google.rpc.BadRequest detail, when present.
func blockDetail(apiErr *APIError) string {
	var reasons []string
	for _, item := range detailList(apiErr.Details) {
		detail, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := detail["@type"].(string); t != "type.googleapis.com/google.rpc.BadRequest" {
			continue
		}
		violations, ok := detail["fieldViolations"].([]any)
		if !ok {
			continue
		}
		for _, v := range violations {
			violation, ok := v.(map[string]any)
			if !ok {
				continue
			}
			desc, _ := violation["description"].(string)
			if desc == "" {
				desc, _ = violation["field"].(string)
			}
			if desc != "" {
				reasons = append(reasons, desc)
			}
		}
	}
	return strings.Join(reasons, ", ")
}

// extractHelpLink digs a documentation link out of the error details. The
// payload is loosely typed: usually a bare list of detail objects, but
// sometimes the whole error envelope. Exactly one link is returned; any
// parse failure falls back to the fixed quota-docs line.
func extractHelpLink(details json.RawMessage) string {
	list := detailList(details)
	for _, item := range list {
		detail, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := detail["@type"].(string); t != helpDetailType {
			continue
		}
		links, ok := detail["links"].([]any)
		if !ok {
			continue
		}
		for _, l := range links {
			link, ok := l.(map[string]any)
			if !ok {
				continue
			}
			desc, _ := link["description"].(string)
			u, _ := link["url"].(string)
			if desc != "" && u != "" {
				return fmt.Sprintf("[%s](%s)", desc, u)
			}
		}
	}
	return fallbackQuotaLink
}

// detailList normalizes the two observed payload shapes into a list of
// detail values: a bare JSON array, or an {"error":{"details":[…]}}
// envelope. Anything else yields nil.
func detailList(details json.RawMessage) []any {
	if len(details) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(details, &decoded); err != nil {
		return nil
	}

	switch v := decoded.(type) {
	case []any:
		return v
	case map[string]any:
		inner := v
		if errObj, ok := v["error"].(map[string]any); ok {
			inner = errObj
		}
		if list, ok := inner["details"].([]any); ok {
			return list
		}
	}
	return nil
}
