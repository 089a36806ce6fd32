package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/internal/pool"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

const maxIdentAttempts = 8

// Config holds the eviction timeouts.
type Config struct {
	// AbandonedTimeout evicts finished tasks nobody polled for this long.
	AbandonedTimeout time.Duration
	// UnresponsiveTimeout kills unfinished tasks with no activity for this long.
	UnresponsiveTimeout time.Duration
}

// DefaultConfig returns the stock timeouts.
func DefaultConfig() Config {
	return Config{
		AbandonedTimeout:    time.Minute,
		UnresponsiveTimeout: 10 * time.Minute,
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLogger sets the logger; the scheduler logs under the "scheduler" name.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRecorder hands every evicted task to r.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithTimeouts overrides the abandoned and unresponsive eviction timeouts.
func WithTimeouts(abandoned, unresponsive time.Duration) Option {
	return func(s *Scheduler) {
		s.cfg.AbandonedTimeout = abandoned
		s.cfg.UnresponsiveTimeout = unresponsive
	}
}

// WithIdentGenerator replaces NewIdent as the source of task idents.
func WithIdentGenerator(gen func() (string, error)) Option {
	return func(s *Scheduler) { s.newIdent = gen }
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Tasks           int            `json:"tasks"`
	ByState         map[string]int `json:"by_state"`
	Waiting         int            `json:"waiting"`
	Created         uint64         `json:"created"`
	Evicted         uint64         `json:"evicted"`
	Abandoned       uint64         `json:"abandoned"`
	Defunct         uint64         `json:"defunct"`
	DroppedMessages uint64         `json:"dropped_messages"`
	Anomalies       uint64         `json:"anomalies"`
}

// Scheduler owns every live task. It is not safe for concurrent use.
type Scheduler struct {
	cfg      Config
	pool     Pool
	inbox    <-chan types.Message
	clock    clockwork.Clock
	log      *zap.Logger
	recorder Recorder
	newIdent func() (string, error)

	tasks map[string]*Task
	// fifo holds idents of CREATED tasks in arrival order.
	fifo []string

	fatal   error
	stopped bool

	created   uint64
	evicted   uint64
	abandoned uint64
	defunct   uint64
	dropped   uint64
	anomalies uint64
}

// New creates a scheduler that dispatches to p and consumes inbox.
func New(p Pool, inbox <-chan types.Message, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      DefaultConfig(),
		pool:     p,
		inbox:    inbox,
		clock:    clockwork.NewRealClock(),
		log:      zap.NewNop(),
		recorder: nopRecorder{},
		newIdent: NewIdent,
		tasks:    make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("scheduler")
	return s
}

// NewTask registers cmd and queues it for dispatch on the next tick.
func (s *Scheduler) NewTask(cmd types.CommandEnvelope) (string, error) {
	if s.stopped {
		return "", ErrStopped
	}
	if s.fatal != nil {
		return "", s.fatal
	}
	ident, err := s.uniqueIdent()
	if err != nil {
		return "", err
	}
	s.tasks[ident] = NewTask(ident, cmd, s.clock.Now())
	s.fifo = append(s.fifo, ident)
	s.created++
	s.log.Debug("task created", zap.String("task_ident", ident), zap.String("command", cmd.CommandName))
	return ident, nil
}

func (s *Scheduler) uniqueIdent() (string, error) {
	for attempt := 0; attempt < maxIdentAttempts; attempt++ {
		ident, err := s.newIdent()
		if err != nil {
			return "", fmt.Errorf("generate task ident: %w", err)
		}
		if _, taken := s.tasks[ident]; !taken {
			return ident, nil
		}
		s.log.Warn("task ident collision, regenerating", zap.String("task_ident", ident))
	}
	return "", fmt.Errorf("generate task ident: %d collisions in a row", maxIdentAttempts)
}

// GetTask returns a snapshot of the task.
func (s *Scheduler) GetTask(ident string) (types.TaskDTO, error) {
	t, ok := s.tasks[ident]
	if !ok {
		return types.TaskDTO{}, ErrTaskNotFound
	}
	return t.DTO(), nil
}

// KillTask terminates the task on behalf of the user. Killing a finished
// task does nothing.
func (s *Scheduler) KillTask(ident string) error {
	t, ok := s.tasks[ident]
	if !ok {
		return ErrTaskNotFound
	}
	if t.IsFinished() {
		return nil
	}
	s.log.Info("killing task", zap.String("task_ident", ident), zap.Stringer("state", t.State()))
	return s.kill(t, types.FinishUserKill)
}

// kill stops t. CREATED tasks and commands withdrawn from the pool finish
// right away. Otherwise the worker's Finished message completes the task and
// the recorded kill reason decides its finish type.
func (s *Scheduler) kill(t *Task, reason types.FinishType) error {
	now := s.clock.Now()
	if t.State() == types.TaskCreated {
		s.removeWaiting(t.Ident())
		return t.Finish(reason, nil, now)
	}

	t.RequestKill(reason)
	outcome, err := s.pool.Cancel(t.Ident(), reason)
	if err != nil {
		return fmt.Errorf("cancel task %s: %w", t.Ident(), err)
	}
	s.log.Debug("pool cancel", zap.String("task_ident", t.Ident()), zap.Stringer("outcome", outcome))
	if outcome == pool.CancelWithdrawn {
		return t.Finish(reason, nil, now)
	}
	return nil
}

func (s *Scheduler) removeWaiting(ident string) {
	if i := slices.Index(s.fifo, ident); i >= 0 {
		s.fifo = slices.Delete(s.fifo, i, i+1)
	}
}

// Tick runs one scheduling round: dispatch, drain, gc. A returned error is
// fatal and every later Tick returns it again.
func (s *Scheduler) Tick() error {
	if s.fatal != nil {
		return s.fatal
	}
	if s.stopped {
		return ErrStopped
	}
	if err := s.dispatch(); err != nil {
		s.fatal = err
		s.log.Error("dispatch failed", zap.Error(err))
		return err
	}
	s.drain()
	s.gc()
	return nil
}

func (s *Scheduler) dispatch() error {
	for len(s.fifo) > 0 && s.pool.Capacity() > 0 {
		ident := s.fifo[0]
		s.fifo = s.fifo[1:]

		// Only a kill takes a task out of CREATED, and kills also remove it
		// from the FIFO. Anything else here is stale and is skipped.
		t, ok := s.tasks[ident]
		if !ok || t.State() != types.TaskCreated {
			s.anomalies++
			s.log.Warn("skipping stale waiting task", zap.String("task_ident", ident))
			continue
		}
		if err := t.MarkQueued(); err != nil {
			return err
		}
		if err := s.pool.Submit(types.WorkerCommand{TaskIdent: ident, Command: t.command}); err != nil {
			return fmt.Errorf("%w: task %s: %w", ErrPoolUnavailable, ident, err)
		}
	}
	return nil
}

func (s *Scheduler) drain() {
	for {
		select {
		case msg := <-s.inbox:
			s.apply(msg)
		default:
			return
		}
	}
}

func (s *Scheduler) apply(msg types.Message) {
	log := s.log.With(zap.String("task_ident", msg.TaskIdent), zap.Stringer("kind", msg.Kind))
	t, ok := s.tasks[msg.TaskIdent]
	if !ok {
		s.dropped++
		log.Debug("message for unknown task dropped")
		return
	}
	if t.State() == types.TaskCreated {
		// The task was never handed to a worker.
		s.anomalies++
		log.Warn("message for undispatched task ignored")
		return
	}

	now := s.clock.Now()
	var err error
	switch msg.Kind {
	case types.MessageExecuted:
		err = t.MarkExecuted(msg.WorkerPID, now)
	case types.MessageReport:
		if msg.Report == nil {
			err = errors.New("report message without a report")
			break
		}
		err = t.AddReport(*msg.Report, now)
	case types.MessageFinished:
		err = t.Finish(msg.FinishType, msg.Result, now)
		if err == nil {
			log.Info("task finished", zap.Stringer("finish_type", t.FinishType()))
		}
	default:
		err = fmt.Errorf("unknown message kind %d", int(msg.Kind))
	}
	if err != nil {
		s.anomalies++
		log.Warn("message ignored", zap.Stringer("state", t.State()), zap.Error(err))
	}
}

func (s *Scheduler) gc() {
	now := s.clock.Now()
	for ident, t := range s.tasks {
		switch {
		case t.IsAbandoned(now, s.cfg.AbandonedTimeout):
			s.abandoned++
			s.log.Info("evicting abandoned task", zap.String("task_ident", ident))
		case t.IsDefunct(now, s.cfg.UnresponsiveTimeout):
			s.defunct++
			s.log.Warn("killing unresponsive task", zap.String("task_ident", ident),
				zap.Stringer("state", t.State()), zap.Time("last_activity", t.LastActivity()))
			s.terminate(t)
		default:
			continue
		}
		s.evict(t)
	}
}

// terminate forces t into FINISHED with SCHEDULER_KILL without waiting for
// the worker.
func (s *Scheduler) terminate(t *Task) {
	if err := s.kill(t, types.FinishSchedulerKill); err != nil {
		s.log.Warn("cancel failed", zap.String("task_ident", t.Ident()), zap.Error(err))
	}
	if !t.IsFinished() {
		_ = t.Finish(types.FinishSchedulerKill, nil, s.clock.Now())
	}
}

func (s *Scheduler) evict(t *Task) {
	delete(s.tasks, t.Ident())
	s.evicted++
	s.recorder.Record(t.DTO())
}

// Shutdown kills every unfinished task, archives all tasks and closes the
// pool. The scheduler accepts no work afterwards.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if s.stopped {
		return nil
	}
	s.stopped = true
	for _, t := range s.tasks {
		if !t.IsFinished() {
			s.terminate(t)
		}
		s.evict(t)
	}
	s.fifo = nil
	if err := s.pool.Close(ctx); err != nil {
		return fmt.Errorf("close pool: %w", err)
	}
	return nil
}

// Stats counts live tasks by state along with lifetime counters.
func (s *Scheduler) Stats() Stats {
	byState := map[string]int{
		types.TaskCreated.String():  0,
		types.TaskQueued.String():   0,
		types.TaskExecuted.String(): 0,
		types.TaskFinished.String(): 0,
	}
	for _, t := range s.tasks {
		byState[t.State().String()]++
	}
	return Stats{
		Tasks:           len(s.tasks),
		ByState:         byState,
		Waiting:         len(s.fifo),
		Created:         s.created,
		Evicted:         s.evicted,
		Abandoned:       s.abandoned,
		Defunct:         s.defunct,
		DroppedMessages: s.dropped,
		Anomalies:       s.anomalies,
	}
}
