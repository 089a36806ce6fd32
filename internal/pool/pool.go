package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/internal/codec"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Config is the static configuration of a pool.
type Config struct {
	Size int
	// MaxTasksPerWorker recycles a worker after it finished that many tasks.
	// Zero disables recycling.
	MaxTasksPerWorker int
	// Command is the worker argv.
	Command []string
	// Env is appended to the parent environment.
	Env             []string
	SpawnBackoffMax time.Duration
	// Stderr receives worker logs. Defaults to os.Stderr.
	Stderr io.Writer
	Codec  codec.StreamCodec
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Size     int   `json:"size"`
	Idle     int   `json:"idle"`
	Busy     int   `json:"busy"`
	Pending  int   `json:"pending"`
	Spawned  int64 `json:"spawned"`
	Crashed  int64 `json:"crashed"`
	Recycled int64 `json:"recycled"`
}

// ProcessPool runs tasks in child processes.
type ProcessPool struct {
	cfg   Config
	log   *zap.Logger
	inbox chan<- types.Message

	mu      sync.Mutex
	workers []*worker
	pending []types.WorkerCommand
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// crashBackoff delays respawning slots whose workers die before
	// finishing any task. Only the reader of the slot's worker touches it.
	crashBackoff []*backoff.ExponentialBackOff

	spawned  atomic.Int64
	crashed  atomic.Int64
	recycled atomic.Int64
}

type worker struct {
	slot   int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	enc    codec.Encoder

	// guarded by ProcessPool.mu
	task         string
	served       int
	retiring     bool
	dead         bool
	cancelReason types.FinishType
}

func (w *worker) idle() bool {
	return !w.dead && !w.retiring && w.task == ""
}

func (w *worker) pid() int {
	return w.cmd.Process.Pid
}

// New starts cfg.Size workers. Messages read from them, and the Finished
// messages the pool synthesizes, are sent to inbox.
func New(cfg Config, inbox chan<- types.Message, log *zap.Logger) (*ProcessPool, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", cfg.Size)
	}
	if len(cfg.Command) == 0 {
		return nil, errors.New("worker command is empty")
	}
	if cfg.Codec == nil {
		c, err := codec.CBOR()
		if err != nil {
			return nil, err
		}
		cfg.Codec = c
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &ProcessPool{
		cfg:          cfg,
		log:          log,
		inbox:        inbox,
		workers:      make([]*worker, cfg.Size),
		ctx:          ctx,
		cancel:       cancel,
		crashBackoff: make([]*backoff.ExponentialBackOff, cfg.Size),
	}
	for slot := range p.crashBackoff {
		p.crashBackoff[slot] = p.newBackoff()
	}

	for slot := 0; slot < cfg.Size; slot++ {
		w, err := p.spawn(slot)
		if err != nil {
			closeErr := p.Close(context.Background())
			return nil, multierr.Append(fmt.Errorf("start worker %d: %w", slot, err), closeErr)
		}
		p.install(w)
	}

	log.Info("worker pool started", zap.Int("size", cfg.Size), zap.Int("max_tasks_per_worker", cfg.MaxTasksPerWorker))
	return p, nil
}

// Capacity is the number of submissions that would start running right away.
func (p *ProcessPool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0
	}
	idle := 0
	for _, w := range p.workers {
		if w != nil && w.idle() {
			idle++
		}
	}
	if c := idle - len(p.pending); c > 0 {
		return c
	}
	return 0
}

// Submit hands wc to an idle worker, or queues it until one is free. It never
// blocks on task execution.
func (p *ProcessPool) Submit(wc types.WorkerCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	for _, w := range p.workers {
		if w != nil && w.idle() {
			p.startLocked(w, wc)
			return nil
		}
	}
	p.pending = append(p.pending, wc)
	return nil
}

// Cancel stops the work belonging to taskIdent. A running worker is killed
// and replaced; reason becomes the finish type of the synthesized Finished
// message.
func (p *ProcessPool) Cancel(taskIdent string, reason types.FinishType) (CancelOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, wc := range p.pending {
		if wc.TaskIdent == taskIdent {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return CancelWithdrawn, nil
		}
	}

	for _, w := range p.workers {
		if w == nil || w.dead || w.task != taskIdent {
			continue
		}
		w.cancelReason = reason
		w.dead = true
		if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return CancelNotRunning, fmt.Errorf("kill worker %d: %w", w.pid(), err)
		}
		p.log.Info("worker killed",
			zap.Int("pid", w.pid()),
			zap.String("task_ident", taskIdent),
			zap.Stringer("reason", reason),
		)
		return CancelKilled, nil
	}

	return CancelNotRunning, nil
}

// Stats returns counters and slot usage.
func (p *ProcessPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Size:     p.cfg.Size,
		Pending:  len(p.pending),
		Spawned:  p.spawned.Load(),
		Crashed:  p.crashed.Load(),
		Recycled: p.recycled.Load(),
	}
	for _, w := range p.workers {
		switch {
		case w == nil:
		case w.idle():
			s.Idle++
		case w.task != "":
			s.Busy++
		}
	}
	return s
}

// Close kills every worker and waits for their readers. Queued commands are
// discarded. Submit fails with ErrPoolClosed afterwards.
func (p *ProcessPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.pending = nil
	workers := append([]*worker(nil), p.workers...)
	p.mu.Unlock()

	p.cancel()

	var errs error
	for _, w := range workers {
		if w == nil {
			continue
		}
		_ = w.stdin.Close()
		if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = multierr.Append(errs, fmt.Errorf("kill worker %d: %w", w.pid(), err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = multierr.Append(errs, fmt.Errorf("wait for workers: %w", ctx.Err()))
	}

	p.log.Info("worker pool closed")
	return errs
}

func (p *ProcessPool) spawn(slot int) (*worker, error) {
	cmd := exec.Command(p.cfg.Command[0], p.cfg.Command[1:]...)
	cmd.Env = append(os.Environ(), p.cfg.Env...)
	cmd.Stderr = p.cfg.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", p.cfg.Command[0], err)
	}

	p.spawned.Add(1)
	return &worker{
		slot:   slot,
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		enc:    p.cfg.Codec.NewEncoder(stdin),
	}, nil
}

// install puts w in its slot and starts its reader. A worker spawned after
// Close is killed right away.
func (p *ProcessPool) install(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.wg.Add(1)
	go p.read(w)

	if p.closed {
		w.dead = true
		_ = w.cmd.Process.Kill()
		return
	}
	p.workers[w.slot] = w
	p.log.Debug("worker ready", zap.Int("slot", w.slot), zap.Int("pid", w.pid()))
	p.assignPendingLocked(w)
}

func (p *ProcessPool) startLocked(w *worker, wc types.WorkerCommand) {
	w.task = wc.TaskIdent
	if err := w.enc.Encode(wc); err != nil {
		// The reader sees the exit and reports the task as crashed.
		p.log.Error("send command to worker failed",
			zap.Int("pid", w.pid()),
			zap.String("task_ident", wc.TaskIdent),
			zap.Error(err),
		)
	}
}

func (p *ProcessPool) assignPendingLocked(w *worker) {
	if len(p.pending) == 0 || !w.idle() {
		return
	}
	wc := p.pending[0]
	p.pending = p.pending[1:]
	p.startLocked(w, wc)
}

// read forwards the worker's messages in order until its stdout closes.
func (p *ProcessPool) read(w *worker) {
	defer p.wg.Done()

	dec := p.cfg.Codec.NewDecoder(w.stdout)
	for {
		var msg types.Message
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) {
				if p.ctx.Err() == nil {
					p.log.Warn("worker stream broken, killing worker", zap.Int("pid", w.pid()), zap.Error(err))
				}
				// The stream cannot be resynchronized; a live worker would
				// otherwise keep Wait blocked and hold its slot.
				_ = w.cmd.Process.Kill()
			}
			break
		}
		if !p.forward(msg) {
			break
		}
		if msg.Kind == types.MessageFinished {
			p.release(w, msg.TaskIdent)
		}
	}

	waitErr := w.cmd.Wait()
	p.exited(w, waitErr)
}

func (p *ProcessPool) forward(msg types.Message) bool {
	select {
	case p.inbox <- msg:
		return true
	case <-p.ctx.Done():
		return false
	}
}

func (p *ProcessPool) release(w *worker, taskIdent string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w.task != taskIdent {
		p.log.Warn("finished message for a task the worker does not hold",
			zap.Int("pid", w.pid()),
			zap.String("task_ident", taskIdent),
			zap.String("held", w.task),
		)
		return
	}
	w.task = ""
	w.served++

	if p.closed || w.dead {
		return
	}
	if p.cfg.MaxTasksPerWorker > 0 && w.served >= p.cfg.MaxTasksPerWorker {
		w.retiring = true
		p.recycled.Add(1)
		// EOF on stdin ends the worker loop; exited respawns the slot.
		_ = w.stdin.Close()
		return
	}
	p.assignPendingLocked(w)
}

func (p *ProcessPool) exited(w *worker, waitErr error) {
	p.mu.Lock()
	task, reason, retiring, served := w.task, w.cancelReason, w.retiring, w.served
	w.task = ""
	w.dead = true
	closed := p.closed
	p.mu.Unlock()

	if task != "" {
		finishType := reason
		if finishType == types.FinishUnfinished {
			finishType = types.FinishUnhandledException
			p.crashed.Add(1)
			p.log.Error("worker exited while running a task",
				zap.Int("pid", w.pid()),
				zap.String("task_ident", task),
				zap.Error(waitErr),
			)
		}
		p.forward(types.NewFinishedMessage(task, finishType, nil))
	} else if !retiring && reason == types.FinishUnfinished && !closed {
		p.crashed.Add(1)
		p.log.Warn("idle worker exited", zap.Int("pid", w.pid()), zap.Error(waitErr))
	}

	if closed {
		return
	}
	p.respawn(w.slot, served > 0 || retiring || reason != types.FinishUnfinished)
}

func (p *ProcessPool) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 0
	if p.cfg.SpawnBackoffMax > 0 {
		b.MaxInterval = p.cfg.SpawnBackoffMax
	}
	return b
}

// respawn replaces the worker of slot. A worker that died without finishing
// a task delays the next one so a broken worker binary does not spin.
func (p *ProcessPool) respawn(slot int, healthy bool) {
	crash := p.crashBackoff[slot]
	if healthy {
		crash.Reset()
	} else {
		timer := time.NewTimer(crash.NextBackOff())
		select {
		case <-timer.C:
		case <-p.ctx.Done():
			timer.Stop()
			return
		}
	}

	err := backoff.Retry(func() error {
		w, err := p.spawn(slot)
		if err != nil {
			p.log.Warn("respawn worker failed", zap.Int("slot", slot), zap.Error(err))
			return err
		}
		p.install(w)
		return nil
	}, backoff.WithContext(p.newBackoff(), p.ctx))
	if err != nil && p.ctx.Err() == nil {
		p.log.Error("giving up on worker slot", zap.Int("slot", slot), zap.Error(err))
	}
}
