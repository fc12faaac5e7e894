package chat

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the orchestrator matches exactly one of
// these with errors.Is.
var (
	// ErrValidation means the request was malformed. Nothing was written.
	ErrValidation = errors.New("invalid request")

	// ErrAccessDenied means the conversation does not exist or belongs to
	// someone else. Callers cannot tell the two apart.
	ErrAccessDenied = errors.New("conversation not found")

	// ErrUpstream means the store or the provider failed before any fragment
	// was produced. The user turn may already be durable.
	ErrUpstream = errors.New("upstream failure")

	// ErrStream means the provider failed after streaming began.
	ErrStream = errors.New("stream failure")

	// ErrCancelled means the consumer went away while streaming.
	ErrCancelled = errors.New("stream cancelled")

	// ErrPersistence means the assistant turn could not be written.
	ErrPersistence = errors.New("persistence failure")
)

var (
	ErrEmptyMessage         = errors.New("message is required")
	ErrMessageTooLong       = errors.New("message is too long")
	ErrConversationNotFound = errors.New("conversation does not exist")
	ErrStoreRequired        = errors.New("store is required")
	ErrProviderRequired     = errors.New("provider is required")

	// ErrProviderFailed marks upstream errors raised by the model provider
	// rather than the store.
	ErrProviderFailed = errors.New("provider request failed")
)

// Error carries an error kind together with the failed operation.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind sentinel of err, or nil when err was not produced
// by this package.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
