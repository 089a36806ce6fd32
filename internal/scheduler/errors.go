package scheduler

import (
	"errors"
	"fmt"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

var (
	// ErrTaskNotFound is returned for unknown or already evicted idents.
	ErrTaskNotFound = errors.New("task not found")
	// ErrPoolUnavailable marks the fatal case of the pool refusing work.
	ErrPoolUnavailable = errors.New("worker pool refused a submission")
	// ErrStopped is returned by Tick after Shutdown.
	ErrStopped = errors.New("scheduler stopped")
)

// TransitionError is an attempted state change the task lifecycle forbids.
type TransitionError struct {
	TaskIdent string
	From      types.TaskState
	To        types.TaskState
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.TaskIdent, e.From, e.To)
}
