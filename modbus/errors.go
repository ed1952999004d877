package modbus

import "errors"

var (
	// ErrInvalidRequest is returned by Master.Submit when a request fails
	// basic shape validation (no completion callback, bad register count,
	// zero timeout, missing write payload).
	ErrInvalidRequest = errors.New("modbus: invalid request")

	// ErrQueueFull is returned by Master.Submit when the request queue is
	// already at MaxRequests.
	ErrQueueFull = errors.New("modbus: request queue full")
)
