package errors

import (
	"errors"
	"fmt"
)

// Kind represents the category of error in the drift pipeline taxonomy.
type Kind string

const (
	// KindCollectorUnavailable marks transient collector failures that the
	// orchestrator retries with backoff.
	KindCollectorUnavailable Kind = "CollectorUnavailable"
	// KindScopeMismatch marks a diff attempted across two different scopes.
	KindScopeMismatch Kind = "ScopeMismatch"
	// KindInvalidOrder marks a diff whose candidate does not order strictly
	// after its baseline.
	KindInvalidOrder Kind = "InvalidOrder"
	// KindNotFound marks a missing snapshot or report.
	KindNotFound Kind = "NotFound"
	// KindStorageError marks persistence failures, non-retryable within a cycle.
	KindStorageError Kind = "StorageError"
	// KindCycleTimeout marks a cycle that exceeded its maximum duration.
	KindCycleTimeout Kind = "CycleTimeout"
	// KindValidation marks malformed input, such as an invalid scope.
	KindValidation Kind = "Validation"
)

// Error is a classified pipeline error. Kind drives retry decisions in the
// orchestrator and status codes in the API facade.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. A nil err returns nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a classified error, or an empty kind for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is classified with the given kind anywhere in
// its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsNotFound reports whether err marks a missing snapshot or report.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsRetryable reports whether the orchestrator may retry the failed
// operation within the current cycle.
func IsRetryable(err error) bool {
	return IsKind(err, KindCollectorUnavailable)
}
