// Package corerr defines the domain error vocabulary every core component
// returns instead of raising exceptions. Kinds map 1:1 to spec §7.
package corerr

import (
	"errors"
	"fmt"
)

// Kind classifies a core error so callers (and the HTTP adapter) can branch
// on it without string matching.
type Kind string

const (
	NotFound         Kind = "not_found"
	AlreadyExists    Kind = "already_exists"
	InvalidInput     Kind = "invalid_input"
	Unauthorized     Kind = "unauthorized"
	Forbidden        Kind = "forbidden"
	ProtocolMismatch Kind = "protocol_mismatch"
	QueueFull        Kind = "queue_full"
	RateLimited      Kind = "rate_limited"
	InvalidPhase     Kind = "invalid_phase"
	Timeout          Kind = "timeout"
	Internal         Kind = "internal"
)

// Error is the tagged result type returned from core APIs.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "session.CreateSession"
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	var err error
	if msg != "" {
		err = errors.New(msg)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap tags an existing error with a Kind and operation name.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal when err does
// not carry one (or is nil, in which case it returns "").
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}

	return Internal
}

// Is reports whether err is a corerr.Error of the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
