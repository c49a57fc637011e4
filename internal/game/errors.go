package game

import (
	"errors"
	"fmt"
)

// Kind classifies a game error for transport mapping and retry policy.
type Kind int

const (
	// KindInvalid is a rule violation. Reported to the caller, never retried.
	KindInvalid Kind = iota
	// KindConflict is a uniqueness violation (name taken, host duplicate).
	KindConflict
	// KindRetriable is transient storage contention; retried with backoff.
	KindRetriable
	// KindUnauthorized is a missing or mismatched session key.
	KindUnauthorized
	// KindNotFound is an unknown game or player.
	KindNotFound
	// KindFatal is unreachable or corrupt storage.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindConflict:
		return "conflict"
	case KindRetriable:
		return "retriable"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "fatal"
	}
}

// Error carries a kind plus a human-readable detail for the client.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a game error with a formatted detail message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and detail to an underlying error.
func Wrap(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindFatal.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindFatal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Detail returns the client-facing message for err.
func Detail(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Detail
	}
	return "internal error"
}
