package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_RateLimitedWithHelpLink(t *testing.T) {
	details := json.RawMessage(`[{"@type":"type.googleapis.com/google.rpc.Help","links":[{"description":"Docs","url":"http://x"}]}]`)
	err := &APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota exceeded", Details: details}

	c := Classify(err, "models/gemini-2.0-flash")
	assert.Equal(t, KindRateLimited, c.Kind)
	assert.Contains(t, c.UserMessage, "models/gemini-2.0-flash")
	assert.Equal(t, 1, strings.Count(c.UserMessage, "[Docs](http://x)"))
	assert.NotContains(t, c.UserMessage, fallbackQuotaLink)
}

func TestClassify_RateLimitedEnvelopeShape(t *testing.T) {
	// Some callers hand over the whole error envelope rather than the
	// bare details list.
	details := json.RawMessage(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.Help","links":[{"description":"Docs","url":"http://x"}]}]}}`)
	err := &APIError{StatusCode: 429, Details: details}

	c := Classify(err, "m")
	assert.Equal(t, KindRateLimited, c.Kind)
	assert.Contains(t, c.UserMessage, "[Docs](http://x)")
}

func TestClassify_RateLimitedMalformedDetails(t *testing.T) {
	cases := []json.RawMessage{
		nil,
		json.RawMessage(`"just a string"`),
		json.RawMessage(`{"error":"not an object"}`),
		json.RawMessage(`[{"@type":"type.googleapis.com/google.rpc.Help","links":"nope"}]`),
		json.RawMessage(`[{"@type":"type.googleapis.com/google.rpc.Help","links":[{"description":"Docs"}]}]`),
		json.RawMessage(`{broken`),
	}
	for i, details := range cases {
		c := Classify(&APIError{StatusCode: 429, Details: details}, "m")
		assert.Equal(t, KindRateLimited, c.Kind, "case %d", i)
		assert.Contains(t, c.UserMessage, fallbackQuotaLink, "case %d", i)
	}
}

func TestClassify_RateLimitedFirstLinkOnly(t *testing.T) {
	details := json.RawMessage(`[{"@type":"type.googleapis.com/google.rpc.Help","links":[
		{"description":"First","url":"http://1"},
		{"description":"Second","url":"http://2"}]}]`)
	c := Classify(&APIError{StatusCode: 429, Details: details}, "m")
	assert.Contains(t, c.UserMessage, "[First](http://1)")
	assert.NotContains(t, c.UserMessage, "http://2")
}

func TestClassify_ModelNotFound(t *testing.T) {
	err := fmt.Errorf("validating model: %w", &APIError{StatusCode: 404, Status: "NOT_FOUND", Message: "model not found"})
	c := Classify(err, "models/gemini-9000")
	assert.Equal(t, KindModelNotFound, c.Kind)
	assert.Contains(t, c.UserMessage, "gemini-9000")
	assert.Contains(t, c.UserMessage, "/select_model")
}

func TestClassify_SafetyBlockedByStatus(t *testing.T) {
	err := &APIError{StatusCode: 400, Status: "BLOCKED", Message: "request blocked"}
	c := Classify(err, "m")
	assert.Equal(t, KindSafetyBlocked, c.Kind)
	assert.Contains(t, c.UserMessage, "safety filters")
}

func TestClassify_SafetyBlockedByMessage(t *testing.T) {
	err := &APIError{StatusCode: 400, Message: "Content violates safety policy"}
	c := Classify(err, "m")
	assert.Equal(t, KindSafetyBlocked, c.Kind)
}

func TestClassify_SafetyBlockedLengthSuggestsReset(t *testing.T) {
	err := &APIError{StatusCode: 400, Status: "BLOCKED", Message: "blocked: CONTEXT window exceeded"}
	c := Classify(err, "m")
	assert.Equal(t, KindSafetyBlocked, c.Kind)
	assert.Contains(t, c.UserMessage, "/reset")
}

func TestClassify_SafetyBlockedFieldViolations(t *testing.T) {
	details := json.RawMessage(`[{"@type":"type.googleapis.com/google.rpc.BadRequest","fieldViolations":[{"description":"sexual content"}]}]`)
	err := &APIError{StatusCode: 400, Status: "BLOCKED", Message: "blocked", Details: details}
	c := Classify(err, "m")
	assert.Contains(t, c.UserMessage, "sexual content")
}

func TestClassify_BadRequest(t *testing.T) {
	err := &APIError{StatusCode: 400, Message: "invalid argument: contents"}
	c := Classify(err, "m")
	assert.Equal(t, KindBadRequest, c.Kind)
	assert.Contains(t, c.UserMessage, "invalid argument")
}

func TestClassify_BadRequestTruncatesLongMessage(t *testing.T) {
	err := &APIError{StatusCode: 400, Message: strings.Repeat("x", 500)}
	c := Classify(err, "m")
	assert.Less(t, len(c.UserMessage), 300)
}

func TestClassify_ServerError(t *testing.T) {
	err := &APIError{StatusCode: 503, Message: "overloaded"}
	c := Classify(err, "m")
	assert.Equal(t, KindServerError, c.Kind)
	assert.Contains(t, c.UserMessage, "try again later")
}

func TestClassify_Timeout(t *testing.T) {
	c := Classify(fmt.Errorf("calling gemini api: %w", errTimeout{}), "m")
	assert.Equal(t, KindServerError, c.Kind)
}

func TestClassify_Unknown(t *testing.T) {
	c := Classify(errors.New("something else entirely"), "m")
	assert.Equal(t, KindUnknown, c.Kind)
	assert.NotEmpty(t, c.UserMessage)
}

func TestClassifyBlockReason(t *testing.T) {
	c := ClassifyBlockReason("SAFETY")
	assert.Equal(t, KindSafetyBlocked, c.Kind)
	assert.Contains(t, c.UserMessage, "SAFETY")

	c = ClassifyBlockReason("MAX_TOKENS: context LENGTH exceeded")
	assert.Contains(t, c.UserMessage, "/reset")
}

// errTimeout satisfies net.Error for timeout classification tests.
type errTimeout struct{}

func (errTimeout) Error() string   { return "deadline exceeded" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }
