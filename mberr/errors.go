// Package mberr defines the Modbus application-level exception codes
// returned by slave work handlers and encoded onto the wire in exception
// responses (function code | 0x80, code).
package mberr

import "fmt"

// Code is a Modbus exception code as defined by the RTU wire format.
type Code uint8

const (
	None     Code = 0
	Func     Code = 1 // illegal function
	RegAddr  Code = 2 // illegal data address
	Data     Code = 3 // illegal data value
	Dev      Code = 4 // slave device failure
	Pending  Code = 5 // acknowledge, processing
	Busy     Code = 6 // slave device busy
)

func (c Code) String() string {
	switch c {
	case None:
		return "none"
	case Func:
		return "illegal function"
	case RegAddr:
		return "illegal data address"
	case Data:
		return "illegal data value"
	case Dev:
		return "slave device failure"
	case Pending:
		return "acknowledge"
	case Busy:
		return "slave device busy"
	default:
		return fmt.Sprintf("code(%d)", uint8(c))
	}
}

// Clamp maps any handler-supplied code above Busy down to Busy, matching
// the original framework's defensive clamp on handler return values
// (check_user_err_code in modbus_slave.c) so a careless handler can never
// encode an out-of-range exception byte onto the wire.
func Clamp(code Code) Code {
	if code > Busy {
		return Busy
	}
	return code
}

// Error wraps a Code as a Go error for callers that want errors.Is/As
// plumbing around slave handler failures.
type Error struct {
	Op   string
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("modbus: %s: %s", e.Op, e.Code)
}

func New(op string, code Code) *Error {
	return &Error{Op: op, Code: code}
}
