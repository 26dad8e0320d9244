package app

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the user
type ErrorKind int

const (
	// KindConnection is an auth or network failure during initial load; the client becomes unconfigured
	KindConnection ErrorKind = iota
	// KindFetch is a failed refresh, on-demand or detail fetch; local state is unchanged
	KindFetch
	// KindMutation is a failed write-through; local state is unchanged
	KindMutation
	// KindPartialProject is a failed version or member fetch of one project during initial load
	KindPartialProject
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindFetch:
		return "fetch"
	case KindMutation:
		return "mutation"
	case KindPartialProject:
		return "partial_project"
	default:
		return "unknown"
	}
}

// Error is a kind plus a human readable message
type Error struct {
	Kind      ErrorKind
	Message   string
	ProjectID int
	Cause     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// ErrNotConfigured is the cause of every error returned by an app without a server
var ErrNotConfigured = errors.New("server URL and API key are not configured")

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err and whether it is an *Error
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
