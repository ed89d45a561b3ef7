package workload

import "errors"

// Configuration defects. These are raised by the workload itself; errors
// produced by a Transport are never wrapped and never appear here.
var (
	ErrNotBound           = errors.New("request builder has not been bound to a worker")
	ErrAlreadyBound       = errors.New("request builder is already bound to a worker")
	ErrInvalidWorkerIndex = errors.New("worker index must be >= 0")
	ErrInvalidCounter     = errors.New("transaction counter must be >= 1")
	ErrNoTransport        = errors.New("request builder has no transport to submit to")
	ErrUnknownKind        = errors.New("unknown workload kind")
	ErrKindExists         = errors.New("workload kind already registered")
)
