// ABOUTME: Provider error types for the Gemini REST API
// ABOUTME: APIError carries the raw status/details payload; predicates cover the common cases

package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// APIError is a non-2xx response from the Gemini API. Details carries the
// raw error-detail payload, which is loosely typed on the wire — consumers
// must treat it as untrusted (see Classify).
type APIError struct {
	StatusCode int
	Status     string // e.g. "NOT_FOUND", "RESOURCE_EXHAUSTED"
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini api error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the provider.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsPermissionDenied reports whether err is a 401/403 from the provider.
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
}

// IsServerError reports whether err is a 5xx from the provider.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 500
}

// IsTimeout reports whether err is a timeout or cancellation expiring a
// provider call. These classify as server errors for the user: the service
// did not answer in time.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// wireError is the JSON envelope Gemini wraps failures in.
type wireError struct {
	Error struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Status  string          `json:"status"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// parseAPIError builds an APIError from a non-2xx response body. A body
// that doesn't match the envelope still produces a usable error carrying
// the raw bytes as the message.
func parseAPIError(statusCode int, body []byte) *APIError {
	var we wireError
	if err := json.Unmarshal(body, &we); err == nil && (we.Error.Message != "" || we.Error.Status != "") {
		return &APIError{
			StatusCode: statusCode,
			Status:     we.Error.Status,
			Message:    we.Error.Message,
			Details:    we.Error.Details,
		}
	}
	return &APIError{
		StatusCode: statusCode,
		Message:    string(body),
	}
}
