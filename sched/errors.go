package sched

import "errors"

var (
	errInvalidTask   = errors.New("sched: task function and non-zero period are required")
	errNotRunning    = errors.New("sched: deferred submission requires a running scheduler")
	errDeferPoolFull = errors.New("sched: deferred task pool exhausted")
)
