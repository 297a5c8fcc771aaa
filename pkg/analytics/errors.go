package analytics

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ConfigurationError reports missing credentials or parameters.
// It is raised before any network traffic and is never retried.
type ConfigurationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// AuthError reports a rejected refresh-token exchange.
type AuthError struct {
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

// Unwrap returns the underlying exchange error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError represents a non-2xx response from the Analytics API, or a
// 2xx response that carried no usable payload.
type APIError struct {
	StatusCode int
	Body       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "API error: " + e.Message
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, msg)
}

// IsNotFound returns true if the error is a 404 Not Found.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized returns true if the error is a 401 Unauthorized.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsForbidden returns true if the error is a 403 Forbidden.
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// TransportError reports a failure that happened below the HTTP status
// level: connection errors, unreadable bodies, or malformed JSON.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

func emptyResponseError() *APIError {
	return &APIError{Message: "empty response"}
}

// googleErrorEnvelope is the error body shape returned by Google APIs.
type googleErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAPIError builds an APIError from a status and raw body, pulling the
// human-readable message out of the Google error envelope when present.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Body:       string(body),
	}
	if len(body) == 0 {
		return apiErr
	}

	var env googleErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}
	apiErr.Message = env.Error.Message
	return apiErr
}
