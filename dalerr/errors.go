// Package dalerr defines the bounded integer error taxonomy used by the
// driver registry and application I/O layer (the "DAL" in the original
// design: registration, descriptors, read/write/seek/ioctl).
package dalerr

import (
	"errors"
	"fmt"
)

// Code is one of a small, fixed set of error categories. Negative values
// mirror the framework's original convention of returning small negative
// integers from C-style entry points instead of raising exceptions.
type Code int

const (
	None        Code = 0
	Invalid     Code = -1
	Overflow    Code = -2
	Unavailable Code = -3
	Exception   Code = -4
	Occupied    Code = -5
	NotExist    Code = -6
)

func (c Code) String() string {
	switch c {
	case None:
		return "none"
	case Invalid:
		return "invalid argument"
	case Overflow:
		return "capacity exhausted"
	case Unavailable:
		return "device unavailable"
	case Exception:
		return "operation not supported"
	case Occupied:
		return "already registered"
	case NotExist:
		return "no such device"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error makes a bare Code usable as an errors.Is target.
func (c Code) Error() string { return c.String() }

// Error is a structured DAL error with enough context to log usefully
// without the caller needing to reparse a bare error string.
type Error struct {
	Op     string // operation that failed, e.g. "open", "read"
	Device string // device name, if applicable
	FD     int    // descriptor, -1 if not applicable
	Code   Code
	Inner  error
}

func (e *Error) Error() string {
	switch {
	case e.Device != "" && e.FD >= 0:
		return fmt.Sprintf("dal: %s: device=%s fd=%d: %s", e.Op, e.Device, e.FD, e.Code)
	case e.Device != "":
		return fmt.Sprintf("dal: %s: device=%s: %s", e.Op, e.Device, e.Code)
	case e.FD >= 0:
		return fmt.Sprintf("dal: %s: fd=%d: %s", e.Op, e.FD, e.Code)
	default:
		return fmt.Sprintf("dal: %s: %s", e.Op, e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison against a bare Code as well as another
// *Error with the same Code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if tc, ok := target.(Code); ok {
		return e.Code == tc
	}
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// New builds a structured error for an operation with no device or fd
// context (e.g. argument validation before a lookup succeeds).
func New(op string, code Code) *Error {
	return &Error{Op: op, FD: -1, Code: code}
}

// NewDevice builds a structured error for a device-scoped operation
// (register, find) where a descriptor is not yet relevant.
func NewDevice(op, device string, code Code) *Error {
	return &Error{Op: op, Device: device, FD: -1, Code: code}
}

// NewFD builds a structured error for a descriptor-scoped operation.
func NewFD(op string, fd int, code Code) *Error {
	return &Error{Op: op, FD: fd, Code: code}
}

// Wrap attaches op/code context to an inner error for call sites that
// want to surface a lower-level failure as a dalerr.Error without losing
// the original cause.
func Wrap(op string, code Code, inner error) *Error {
	return &Error{Op: op, FD: -1, Code: code, Inner: inner}
}

// WrapFD is Wrap scoped to a descriptor.
func WrapFD(op string, fd int, code Code, inner error) *Error {
	return &Error{Op: op, FD: fd, Code: code, Inner: inner}
}

// CodeOf extracts the Code carried by a dalerr.Error, or None if err is
// nil and Exception if err does not wrap a *Error (an unexpected error
// still needs *some* taxonomy bucket at the call site).
func CodeOf(err error) Code {
	if err == nil {
		return None
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Exception
}
