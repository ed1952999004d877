// Package modbus implements the RTU master and slave state machines:
// a shared sliding-window byte parser, CRC-16 validation, and the two
// function codes this runtime supports (read holding registers, write
// multiple registers). It is grounded on the original framework's
// Protocol/modbus/modbus_slave.c and modbus_master.c.
package modbus

// Function codes this runtime understands. Any other code is rejected
// by the parser during the FUNC state.
const (
	FuncReadHoldingRegisters  byte = 0x03
	FuncWriteMultipleRegisters byte = 0x10
)

// Frame and register limits, grounded in modbus.h.
const (
	FrameBytesMax  = 256
	MaxReadRegs    = 125
	MaxWriteRegs   = 123
	addrBytes      = 1
	funcBytes      = 1
	regBytes       = 2
	regLenBytes    = 2
	crcBytes       = 2
	readHeaderLen  = 4 // reg_h, reg_l, num_h, num_l
	writeHeaderLen = 5 // reg_h, reg_l, num_h, num_l, byte_count
)

// MaxRequests is the master's fixed request-queue capacity, grounded in
// MAX_REQUEST in modbus_master.c.
const MaxRequests = 16

// MaxRepeats is the number of retransmissions attempted before a request
// times out, grounded in MASTER_REPEATS (3 in the header this source
// variant shipped with).
const MaxRepeats = 3

func isValidFunc(f byte) bool {
	return f == FuncReadHoldingRegisters || f == FuncWriteMultipleRegisters
}

func validRegCount(n uint16, f byte) bool {
	switch f {
	case FuncReadHoldingRegisters:
		return n <= MaxReadRegs
	case FuncWriteMultipleRegisters:
		return n <= MaxWriteRegs
	default:
		return false
	}
}

// checkRegRange reports whether [reg, reg+num) lies fully inside
// [from, to) and num is within the function's valid count, matching
// MODBUS_CHECK_REG_RANGE.
func checkRegRange(reg, num uint16, from, to uint16, f byte) bool {
	return reg < to && reg >= from && validRegCount(num, f) && reg+num <= to
}
