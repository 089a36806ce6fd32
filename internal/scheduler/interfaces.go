package scheduler

import (
	"context"

	"github.com/ClusterLabs/pcs-sub012/internal/pool"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Pool is the worker pool as seen by the scheduler.
type Pool interface {
	// Capacity is how many submissions would start right away.
	Capacity() int
	// Submit must not block. An error means the pool is gone.
	Submit(wc types.WorkerCommand) error
	Cancel(taskIdent string, reason types.FinishType) (pool.CancelOutcome, error)
	Close(ctx context.Context) error
}

// Recorder receives snapshots of evicted tasks. Record must not block.
type Recorder interface {
	Record(dto types.TaskDTO)
}

type nopRecorder struct{}

func (nopRecorder) Record(types.TaskDTO) {}
