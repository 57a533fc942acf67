// Package errors provides custom error types for the chat completion client.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for common cases
var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrNoContent       = errors.New("no content in response")
	ErrStreamClosed    = errors.New("stream closed")

	// ErrCancelled marks an exchange that was superseded or cancelled by the user.
	// It is never shown to the user.
	ErrCancelled = errors.New("request cancelled")

	ErrValidation         = errors.New("validation failed")
	ErrCredentialRequired = errors.New("API key is required")
	ErrCredentialFormat   = errors.New("API key has an invalid format")
	ErrEmptyPrompt        = errors.New("prompt cannot be empty")
)

// genericFailureMessage is shown when nothing better can be extracted from an error
const genericFailureMessage = "Something went wrong while contacting the API"

// ValidationError is raised locally before anything is sent to the endpoint
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel this validation failure matches
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is allows comparison with sentinel errors
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, sentinel error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: sentinel}
}

// APIError represents a failed request or an error payload from the endpoint
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Type       string
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// Is allows comparison with sentinel errors
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden ||
			e.Code == "invalid_api_key"
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests ||
			e.Code == "rate_limit_exceeded" || e.Type == "rate_limit_error"
	}
	_, ok := target.(*APIError)
	return ok
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// NewAPIErrorWithBody creates a new APIError carrying the raw response body
func NewAPIErrorWithBody(statusCode int, endpoint, message, body string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
		Body:       body,
	}
}

// NetworkError represents a failure to reach the endpoint or read from it
type NetworkError struct {
	Operation string
	Endpoint  string
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("network error during %s at %s: %v", e.Operation, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkErrorWithEndpoint creates a new NetworkError
func NewNetworkErrorWithEndpoint(operation, endpoint string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Endpoint: endpoint, Err: err}
}

// TimeoutError represents a request timeout
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request timed out: %s", e.Message)
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{Message: message}
}

// ParseError represents a response parsing error
type ParseError struct {
	Message string
	Path    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// NewParseError creates a new ParseError
func NewParseError(message, path string) *ParseError {
	return &ParseError{Message: message, Path: path}
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// IsCancellation reports whether err means the exchange was cancelled rather than failed
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsValidationError reports whether err was raised by local validation
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAuthError reports whether err is an authentication failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsRateLimitError reports whether err is a rate limit rejection
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsNetworkError reports whether err happened at the transport level
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsTimeoutError reports whether err is a timeout
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// GetHTTPStatus returns the HTTP status carried by err, or 0
func GetHTTPStatus(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// GetEndpoint returns the endpoint carried by err, or ""
func GetEndpoint(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Endpoint
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Endpoint
	}
	return ""
}

// GetResponseBody returns the raw response body carried by err, or ""
func GetResponseBody(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Body
	}
	return ""
}

// HumanMessage maps a failed exchange to the text shown in the error turn.
// A structured error.message from the endpoint wins; otherwise a readable
// description of the failure class is used, falling back to a generic line.
func HumanMessage(err error) string {
	if err == nil {
		return ""
	}

	var ae *APIError
	if errors.As(err, &ae) {
		if msg := strings.TrimSpace(ae.Message); msg != "" {
			return msg
		}
		if ae.StatusCode > 0 {
			if text := http.StatusText(ae.StatusCode); text != "" {
				return text
			}
		}
		return genericFailureMessage
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	switch {
	case IsTimeoutError(err):
		return "The request timed out"
	case IsNetworkError(err):
		return "Could not reach the API. Check your connection"
	case errors.Is(err, ErrInvalidResponse):
		return "The API returned a response that could not be read"
	}

	return genericFailureMessage
}
