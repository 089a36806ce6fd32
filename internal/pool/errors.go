package pool

import "errors"

// ErrPoolClosed is returned once Close has been called.
var ErrPoolClosed = errors.New("worker pool is closed")

// CancelOutcome tells the caller what Cancel did.
type CancelOutcome int

const (
	// CancelNotRunning means the pool holds no work for the task. Its
	// Finished message, if any, is already on its way.
	CancelNotRunning CancelOutcome = iota
	// CancelWithdrawn means the command was still queued inside the pool and
	// will never run.
	CancelWithdrawn
	// CancelKilled means the worker process running the task was terminated.
	// The pool emits a Finished message carrying the cancel reason.
	CancelKilled
)

// String returns a short lowercase name for logs.
func (o CancelOutcome) String() string {
	switch o {
	case CancelWithdrawn:
		return "withdrawn"
	case CancelKilled:
		return "killed"
	default:
		return "not-running"
	}
}
