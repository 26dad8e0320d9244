package redmine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/cli/go-gh/v2/pkg/api"
)

// ErrorType represents the type of error that occurred
type ErrorType int

const (
	// ErrorTypeValidation indicates the request was rejected as invalid
	ErrorTypeValidation ErrorType = iota
	// ErrorTypeConfiguration indicates missing or malformed client settings
	ErrorTypeConfiguration
	// ErrorTypeAuth indicates a rejected API key or missing permission
	ErrorTypeAuth
	// ErrorTypeNetwork indicates a network connectivity error
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline
	ErrorTypeTimeout
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound
	// ErrorTypeAPI indicates a general API error
	ErrorTypeAPI
)

// String returns the name of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeConfiguration:
		return "configuration"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeNotFound:
		return "not_found"
	default:
		return "api"
	}
}

// APIError represents a structured error with type and suggestion
type APIError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
	Suggestion string
}

// Error implements the error interface
func (e *APIError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("caused by: %v", e.Cause))
	}

	msg := strings.Join(parts, ": ")
	if e.Suggestion != "" {
		msg += "\n" + e.Suggestion
	}
	return msg
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *APIError {
	return &APIError{
		Type:       ErrorTypeValidation,
		Message:    message,
		Cause:      cause,
		Suggestion: "Check your input parameters and try again",
	}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string, cause error) *APIError {
	return &APIError{
		Type:       ErrorTypeConfiguration,
		Message:    message,
		Cause:      cause,
		Suggestion: "Run 'redmine-desktop init' to set the server URL and API key",
	}
}

// NewAuthError creates a new authentication/permission error
func NewAuthError(message string, cause error) *APIError {
	return &APIError{
		Type:       ErrorTypeAuth,
		Message:    message,
		Cause:      cause,
		Suggestion: "Check that the API key is valid and the REST web service is enabled on the server",
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *APIError {
	return &APIError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		Cause:      cause,
		Suggestion: "Check the server URL and your network connection and try again",
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *APIError {
	return &APIError{
		Type:       ErrorTypeTimeout,
		Message:    message,
		Cause:      cause,
		Suggestion: "The server did not answer in time; try again later",
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Suggestion: fmt.Sprintf("Check that the %s exists and you have access to it", resource),
	}
}

// NewAPIError creates a new general API error
func NewAPIError(message string, cause error) *APIError {
	return &APIError{
		Type:    ErrorTypeAPI,
		Message: message,
		Cause:   cause,
	}
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Type:       apiErr.Type,
			Message:    message,
			StatusCode: apiErr.StatusCode,
			Cause:      err,
			Suggestion: apiErr.Suggestion,
		}
	}
	return classify(err, message)
}

// classify maps a transport or HTTP failure onto an APIError
func classify(err error, message string) *APIError {
	if err == nil {
		return nil
	}

	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		var e *APIError
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			e = NewAuthError(message, err)
		case http.StatusNotFound:
			e = NewNotFoundError(message)
			e.Cause = err
		case http.StatusUnprocessableEntity:
			e = NewValidationError(message, err)
		default:
			e = NewAPIError(message, err)
		}
		e.StatusCode = httpErr.StatusCode
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewTimeoutError(message, err)
		}
		return NewNetworkError(message, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewNetworkError(message, err)
	}

	return NewAPIError(message, err)
}

// IsConnectionFailure reports whether err means the server could not be
// reached or refused the credentials
func IsConnectionFailure(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Type {
	case ErrorTypeAuth, ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeConfiguration:
		return true
	}
	return false
}

// IsNotFound reports whether err is a not found API error
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeNotFound
}
