package bluing

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors. Match them with errors.Is, or with the Is* helpers which
// also follow github.com/pkg/errors Cause chains.
var (
	ErrTruncated      = errors.New("truncated")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrTooDeep        = errors.New("nesting too deep")
	ErrInvalid        = errors.New("invalid encoding")

	// ErrTransportTimeout: no response by the deadline.
	ErrTransportTimeout = errors.New("transport timeout")
	// ErrTransportRejected: the peer or the controller explicitly refused.
	ErrTransportRejected = errors.New("transport rejected")
	// ErrResourceUnavailable: a required controller or peripheral is missing.
	ErrResourceUnavailable = errors.New("resource unavailable")
)

// DecodeKind classifies a DecodeError.
type DecodeKind int

const (
	Truncated DecodeKind = iota
	LengthMismatch
	TooDeep
	Invalid
)

func (k DecodeKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case LengthMismatch:
		return "length mismatch"
	case TooDeep:
		return "too deep"
	}
	return "invalid"
}

// DecodeError reports malformed input. It is isolated to the element that
// failed; callers attach it to that element and keep going.
type DecodeError struct {
	Kind   DecodeKind
	Offset int
	Msg    string
}

// NewDecodeError returns a DecodeError at offset off.
func NewDecodeError(k DecodeKind, off int, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: k, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("decode: %s at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("decode: %s at offset %d: %s", e.Kind, e.Offset, e.Msg)
}

func (e *DecodeError) Unwrap() error {
	switch e.Kind {
	case Truncated:
		return ErrTruncated
	case LengthMismatch:
		return ErrLengthMismatch
	case TooDeep:
		return ErrTooDeep
	}
	return ErrInvalid
}

// RejectedError carries the status code of an explicit rejection.
type RejectedError struct {
	Op     string
	Code   uint8
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s rejected: %s (0x%02X)", e.Op, e.Reason, e.Code)
	}
	return fmt.Sprintf("%s rejected: 0x%02X", e.Op, e.Code)
}

func (e *RejectedError) Unwrap() error { return ErrTransportRejected }

// IsTimeout reports whether err is, or wraps, ErrTransportTimeout.
func IsTimeout(err error) bool { return is(err, ErrTransportTimeout) }

// IsRejected reports whether err is, or wraps, ErrTransportRejected.
func IsRejected(err error) bool { return is(err, ErrTransportRejected) }

// IsUnavailable reports whether err is, or wraps, ErrResourceUnavailable.
func IsUnavailable(err error) bool { return is(err, ErrResourceUnavailable) }

// IsDecode reports whether err is, or wraps, a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) || errors.As(errors.Cause(err), &de)
}

func is(err, target error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, target) || errors.Is(errors.Cause(err), target)
}

// ContextErr maps a finished context to the taxonomy: an expired deadline is
// ErrTransportTimeout, cancellation stays context.Canceled.
func ContextErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(ErrTransportTimeout, "deadline exceeded")
	}
	return ctx.Err()
}
