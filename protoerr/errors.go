// Package protoerr carries the layered error taxonomy between the
// protocol layers (dispatch → eip → cpf → cipsvc → tagstore). Each layer
// reports a Kind to the layer above via a normal Go error; the layer
// above decides whether to translate it into a wire-level status or to
// keep propagating it. This is the idiomatic-Go shape of the "negative
// length encodes an error" convention the original C source used to
// avoid out-parameters.
package protoerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy from spec section 7.
type Kind int

const (
	// Incomplete means the dispatcher has not yet received a full
	// packet; the caller should read more bytes before retrying.
	Incomplete Kind = iota + 1
	// BadRequest means EIP/CPF header validation failed.
	BadRequest
	// Unsupported means an unknown EIP command or CIP service was
	// requested.
	Unsupported
	// IdentityMismatch means a Forward Close's identity fields did not
	// match what Forward Open recorded.
	IdentityMismatch
	// PathMismatch means a connection path comparison failed.
	PathMismatch
	// OutOfRange means a tag dimension or read span fell outside the
	// tag's declared extents.
	OutOfRange
	// NeedsFragment means a read span exceeded the output capacity and
	// was only partially satisfied.
	NeedsFragment
	// Done means UnregisterSession matched and the connection should be
	// closed after writing the (empty) reply.
	Done
)

func (k Kind) String() string {
	switch k {
	case Incomplete:
		return "incomplete packet"
	case BadRequest:
		return "bad request"
	case Unsupported:
		return "unsupported"
	case IdentityMismatch:
		return "identity mismatch"
	case PathMismatch:
		return "path mismatch"
	case OutOfRange:
		return "out of range"
	case NeedsFragment:
		return "needs fragment"
	case Done:
		return "done"
	default:
		return "unknown error kind"
	}
}

// Error is the concrete error type carrying a Kind plus context.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds an *Error with the given kind and a formatted message.
func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, protoerr.Incomplete)-style checks against a
// bare Kind value by wrapping it: errors.Is(err, protoerr.Of(Incomplete)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Of builds a bare sentinel *Error of the given kind, suitable for use
// with errors.Is.
func Of(k Kind) *Error {
	return &Error{Kind: k}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
