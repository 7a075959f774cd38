package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the boundary layer can map it to a response
// code without string-matching messages.
type Kind string

const (
	KindInvalidModel     Kind = "invalid_model"
	KindSessionNotFound  Kind = "session_not_found"
	KindIdentityMismatch Kind = "identity_mismatch"
	KindSessionExpired   Kind = "session_expired"
	KindAttachmentRead   Kind = "attachment_read_error"
	KindUpstream         Kind = "upstream_error"
	KindUpstreamTimeout  Kind = "upstream_timeout"
)

// ErrContentBlocked marks a turn rejected by the upstream safety filters.
// It is always surfaced wrapped in a KindUpstream error, never swallowed.
var ErrContentBlocked = errors.New("content blocked by safety filters")

// Error carries a machine-checkable kind plus a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// NewError builds a typed error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error. If err is
// already typed, its kind is preserved.
func WrapError(err error, kind Kind, message string) *Error {
	var de *Error
	if errors.As(err, &de) {
		kind = de.Kind
	}
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// KindOf extracts the kind of an error, or "" for untyped errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
