package scheduler

import (
	"context"
	"sync"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Locked serializes every call into a Scheduler so that HTTP handlers and
// the tick driver can share it.
type Locked struct {
	mu sync.Mutex
	s  *Scheduler
}

// NewLocked wraps s. Callers must not use s directly afterwards.
func NewLocked(s *Scheduler) *Locked {
	return &Locked{s: s}
}

// NewTask calls Scheduler.NewTask under the lock.
func (l *Locked) NewTask(cmd types.CommandEnvelope) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.NewTask(cmd)
}

// GetTask calls Scheduler.GetTask under the lock.
func (l *Locked) GetTask(ident string) (types.TaskDTO, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.GetTask(ident)
}

// KillTask calls Scheduler.KillTask under the lock.
func (l *Locked) KillTask(ident string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.KillTask(ident)
}

// Tick calls Scheduler.Tick under the lock, so it satisfies Ticker.
func (l *Locked) Tick() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Tick()
}

// Stats calls Scheduler.Stats under the lock.
func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Stats()
}

// Shutdown calls Scheduler.Shutdown under the lock.
func (l *Locked) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Shutdown(ctx)
}
