package oaiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrModelNotFound indicates the provider does not list the requested model.
	ErrModelNotFound = errors.New("model not found")

	// ErrEmptyResponse indicates the API returned no choices.
	ErrEmptyResponse = errors.New("empty response from API")

	// ErrStreamClosed indicates a read on a stream that was already closed.
	ErrStreamClosed = errors.New("stream closed")
)

// ErrorResponse is the error envelope used by OpenAI-compatible servers:
// {"error":{"message":"...","type":"...","code":"..."}}
type ErrorResponse struct {
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Message string                 `json:"message"`
	Type    string                 `json:"type"`
	Code    any                    `json:"code,omitempty"`
	Param   string                 `json:"param,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// APIError represents an error response from the provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Code       string
	Param      string
	Details    map[string]interface{}
	RequestID  string
}

func (b *errorBody) toAPIError(status int, requestID string) *APIError {
	e := &APIError{
		StatusCode: status,
		Type:       b.Type,
		Message:    b.Message,
		Param:      b.Param,
		Details:    b.Details,
		RequestID:  requestID,
	}
	// Some servers send numeric codes.
	switch c := b.Code.(type) {
	case string:
		e.Code = c
	case float64:
		e.Code = fmt.Sprintf("%d", int(c))
	}
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		if e.Code != "" {
			return fmt.Sprintf("stream error (%s): %s", e.Code, e.Message)
		}
		return fmt.Sprintf("stream error: %s", e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error is retryable.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	switch e.Code {
	case "timeout", "connection_error", "server_error":
		return true
	}
	return false
}

// IsRateLimit returns true if this is a rate limit error.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == "rate_limit_exceeded"
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == "invalid_api_key"
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return false
}
