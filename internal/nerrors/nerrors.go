// Package nerrors implements the error taxonomy that replaces the
// exceptions-for-control-flow style of the original source: every
// operation that can fail returns one of the kinds below instead of
// throwing, and callers decide retry eligibility from the kind alone.
package nerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// IoKind distinguishes the filesystem failure modes the work engine and
// session manager need to tell apart.
type IoKind int

const (
	IoOther IoKind = iota
	IoNotFound
	IoAlreadyExists
	IoSharingViolation
	IoPermissionDenied
)

func (k IoKind) String() string {
	switch k {
	case IoNotFound:
		return "not-found"
	case IoAlreadyExists:
		return "already-exists"
	case IoSharingViolation:
		return "sharing-violation"
	case IoPermissionDenied:
		return "permission-denied"
	default:
		return "other"
	}
}

// IoError wraps a filesystem failure with the kind needed to drive
// retry policy.
type IoError struct {
	Kind IoKind
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error (%s) on %q: %v", e.Kind, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// NewIoError wraps err as an IoError of the given kind, adding a stack
// trace via pkg/errors so the originating call site survives logging.
func NewIoError(kind IoKind, path string, err error) *IoError {
	return &IoError{Kind: kind, Path: path, Err: errors.WithStack(err)}
}

// NetworkKind distinguishes connection failures.
type NetworkKind int

const (
	NetOther NetworkKind = iota
	NetClosed
	NetTimeout
	NetProtocolMismatch
)

// NetworkError wraps a connection-level failure.
type NetworkError struct {
	Kind NetworkKind
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func NewNetworkError(kind NetworkKind, err error) *NetworkError {
	return &NetworkError{Kind: kind, Err: errors.WithStack(err)}
}

// ProtocolError signals a framing or command violation: an oversize
// frame, or a response tag the caller didn't expect.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Msg }

func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// Retriable wraps any of the above (or a plain error) and marks it as
// eligible for the work engine's retry loop.
type Retriable struct {
	Err error
}

func (e *Retriable) Error() string { return e.Err.Error() }
func (e *Retriable) Unwrap() error { return e.Err }

// Retry marks err as retry-eligible.
func Retry(err error) error {
	if err == nil {
		return nil
	}
	return &Retriable{Err: err}
}

// IsRetriable reports whether err (or anything it wraps) was marked
// retry-eligible, or is an IoError/NetworkError kind that is inherently
// transient (sharing violations, already-exists races, timeouts).
// Closed connections are not retriable.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var r *Retriable
	if errors.As(err, &r) {
		return true
	}
	var ioe *IoError
	if errors.As(err, &ioe) {
		return ioe.Kind == IoSharingViolation || ioe.Kind == IoAlreadyExists
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Kind == NetTimeout
	}
	return false
}

// Fatal wraps an error that must surface all the way up and abort the
// connection or session it occurred on (e.g. a security-file handshake
// failure).
type Fatal struct {
	Err error
}

func (e *Fatal) Error() string { return e.Err.Error() }
func (e *Fatal) Unwrap() error { return e.Err }

func NewFatal(err error) error {
	if err == nil {
		return nil
	}
	return &Fatal{Err: errors.WithStack(err)}
}
