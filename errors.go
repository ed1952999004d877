package vos

import (
	"errors"
	"fmt"

	"github.com/embeddedvos/vos/dalerr"
	"github.com/embeddedvos/vos/mberr"
)

// Error is a structured top-level error: an operation name plus
// whichever subsystem error (a *dalerr.Error or *mberr.Error) actually
// failed. It exists so a caller working at the Machine level can use a
// single errors.As target instead of knowing in advance which subsystem
// produced a given failure.
type Error struct {
	Op    string
	Inner error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vos: %s: %v", e.Op, e.Inner)
}

func (e *Error) Unwrap() error { return e.Inner }

// Wrap attaches an operation name to any error a Machine method returns.
// A nil inner error yields a nil *Error. Stored in an error interface,
// that nil pointer is a non-nil error value.
func Wrap(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Inner: inner}
}

// DALCode extracts the dalerr.Code carried by err, if any.
func DALCode(err error) (dalerr.Code, bool) {
	var de *dalerr.Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return dalerr.None, false
}

// ModbusCode extracts the mberr.Code carried by err, if any.
func ModbusCode(err error) (mberr.Code, bool) {
	var me *mberr.Error
	if errors.As(err, &me) {
		return me.Code, true
	}
	return mberr.None, false
}
