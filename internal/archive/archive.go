// Package archive keeps snapshots of tasks evicted from the scheduler so they
// can still be inspected after they age out of memory.
package archive

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// ErrNotArchived is returned by Load for unknown or expired idents.
var ErrNotArchived = errors.New("task not archived")

// Archive stores task snapshots.
type Archive interface {
	Store(ctx context.Context, dto types.TaskDTO) error
	Load(ctx context.Context, taskIdent string) (types.TaskDTO, error)
	Close() error
}

// Nop discards everything.
type Nop struct{}

// Store discards dto.
func (Nop) Store(context.Context, types.TaskDTO) error { return nil }

// Load always reports ErrNotArchived.
func (Nop) Load(context.Context, string) (types.TaskDTO, error) {
	return types.TaskDTO{}, ErrNotArchived
}

// Close is a no-op.
func (Nop) Close() error { return nil }

// Recorder feeds an Archive from a background goroutine so callers that must
// not block, like the scheduler tick, can hand snapshots off.
type Recorder struct {
	archive Archive
	timeout time.Duration
	log     *zap.Logger
	ch      chan types.TaskDTO
	wg      sync.WaitGroup
	once    sync.Once

	stored  atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewRecorder starts the background writer. Each Store call gets timeout.
func NewRecorder(a Archive, buffer int, timeout time.Duration, log *zap.Logger) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		archive: a,
		timeout: timeout,
		log:     log,
		ch:      make(chan types.TaskDTO, buffer),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record queues dto without blocking. Snapshots that do not fit are dropped.
func (r *Recorder) Record(dto types.TaskDTO) {
	select {
	case r.ch <- dto:
	default:
		r.dropped.Add(1)
		r.log.Warn("archive queue full, snapshot dropped", zap.String("task_ident", dto.TaskIdent))
	}
}

// Close stops accepting snapshots, waits for the queue to drain and closes
// the archive.
func (r *Recorder) Close(ctx context.Context) error {
	r.once.Do(func() { close(r.ch) })

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.archive.Close()
}

// Counts returns stored, dropped and failed totals.
func (r *Recorder) Counts() (stored, dropped, failed int64) {
	return r.stored.Load(), r.dropped.Load(), r.failed.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for dto := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.archive.Store(ctx, dto)
		cancel()
		if err != nil {
			r.failed.Add(1)
			r.log.Error("archive task failed", zap.String("task_ident", dto.TaskIdent), zap.Error(err))
			continue
		}
		r.stored.Add(1)
	}
}
