package setup

import (
	"errors"
	"fmt"
	"io"

	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// ErrorType represents the type of setup error
type ErrorType int

const (
	// ErrorTypeConfig indicates a configuration file error
	ErrorTypeConfig ErrorType = iota
	// ErrorTypeConnection indicates the server could not be reached or rejected the key
	ErrorTypeConnection
	// ErrorTypeFileSystem indicates a file system error
	ErrorTypeFileSystem
	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation
)

// SetupError represents a setup error with context
type SetupError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *SetupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *SetupError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error
func NewConfigError(message string, cause error) *SetupError {
	return &SetupError{
		Type:    ErrorTypeConfig,
		Message: message,
		Cause:   cause,
	}
}

// NewConnectionError creates a new connection error
func NewConnectionError(message string, cause error) *SetupError {
	return &SetupError{
		Type:    ErrorTypeConnection,
		Message: message,
		Cause:   cause,
	}
}

// NewFileSystemError creates a new file system error
func NewFileSystemError(message string, cause error) *SetupError {
	return &SetupError{
		Type:    ErrorTypeFileSystem,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *SetupError {
	return &SetupError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// HandleSetupError writes a message and a hint appropriate to the error type
func HandleSetupError(w io.Writer, err error) {
	if err == nil {
		return
	}

	var e *SetupError
	if !errors.As(err, &e) {
		fmt.Fprintf(w, "Unexpected error: %v\n", err)
		return
	}

	switch e.Type {
	case ErrorTypeConfig:
		fmt.Fprintf(w, "Configuration error: %v\n", e)
		fmt.Fprintln(w, "Please check the format of your config.yml file and try again.")
	case ErrorTypeConnection:
		fmt.Fprintf(w, "Connection error: %v\n", e)
		var apiErr *redmine.APIError
		if errors.As(e, &apiErr) && apiErr.Suggestion != "" {
			fmt.Fprintln(w, apiErr.Suggestion)
		} else {
			fmt.Fprintln(w, "Please check the server URL, the API key and your network connection.")
		}
	case ErrorTypeFileSystem:
		fmt.Fprintf(w, "File system error: %v\n", e)
		fmt.Fprintln(w, "Please check file permissions and disk space.")
	case ErrorTypeValidation:
		fmt.Fprintf(w, "Validation error: %v\n", e)
		fmt.Fprintln(w, "Please check your input values and try again.")
	default:
		fmt.Fprintf(w, "Error: %v\n", e)
	}
}
