package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes returned by the session API.
const (
	CodeSessionConflict    = "SESSION_CONFLICT"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeBackendUnavailable = "ANKI_UNAVAILABLE"
)

// APIError is a structured failure from the session API, carrying a
// stable machine code and a human message.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("session api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("session api error (status %d): %s", e.Status, e.Message)
}

// ErrorCode extracts the stable code from an API error, or "" for other
// error kinds.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsNotFound reports whether an error is the API's "no such session"
// answer, which callers treat as an ordinary outcome rather than a
// failure.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeSessionNotFound || apiErr.Status == http.StatusNotFound
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

type errorBody struct {
	Error *errorDetail `json:"error"`
	// Some server stacks wrap the structured error in a detail field.
	Detail *errorBody `json:"detail"`
}

// decodeAPIError turns a non-2xx response body into an APIError. Bodies
// that do not match the structured shape fall back to the raw text.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		if len(body) > 0 {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	detail := parsed.Error
	if detail == nil && parsed.Detail != nil {
		detail = parsed.Detail.Error
	}
	if detail == nil {
		if len(body) > 0 {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	apiErr.Code = detail.Code
	apiErr.Message = detail.Message
	apiErr.Details = detail.Details
	return apiErr
}
