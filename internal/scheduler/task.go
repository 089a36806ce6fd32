package scheduler

import (
	"time"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Task is the scheduler-side record of one unit of work. Only the scheduler
// mutates it, in response to caller requests and worker messages.
type Task struct {
	ident        string
	command      types.CommandEnvelope
	reports      []types.ReportItem
	state        types.TaskState
	finishType   types.FinishType
	result       any
	workerPID    int
	lastActivity time.Time
	// killReason, when set, replaces the finish type of the next Finished
	// message. It is set when a kill was requested while the worker still ran.
	killReason types.FinishType
}

// NewTask creates a task in TaskCreated.
func NewTask(ident string, cmd types.CommandEnvelope, now time.Time) *Task {
	return &Task{
		ident:        ident,
		command:      cmd,
		reports:      []types.ReportItem{},
		state:        types.TaskCreated,
		workerPID:    -1,
		lastActivity: now,
	}
}

// Ident returns the task identifier.
func (t *Task) Ident() string { return t.ident }

// State returns the lifecycle state.
func (t *Task) State() types.TaskState { return t.state }

// FinishType is FinishUnfinished until the task reaches TaskFinished.
func (t *Task) FinishType() types.FinishType { return t.finishType }

// WorkerPID is -1 until a worker reports Executed.
func (t *Task) WorkerPID() int { return t.workerPID }

// LastActivity is the time of creation or of the last applied message.
func (t *Task) LastActivity() time.Time { return t.lastActivity }

// KillRequested reports whether a kill reason is pending.
func (t *Task) KillRequested() bool { return t.killReason != types.FinishUnfinished }

// IsFinished reports whether the task reached its terminal state.
func (t *Task) IsFinished() bool {
	return t.state == types.TaskFinished
}

// canTransition allows one step forward, or a jump to FINISHED from any
// unfinished state when the task is killed or its worker dies.
func canTransition(from, to types.TaskState) bool {
	if from == types.TaskFinished {
		return false
	}
	return to == from+1 || to == types.TaskFinished
}

func (t *Task) transition(to types.TaskState) error {
	if !canTransition(t.state, to) {
		return &TransitionError{TaskIdent: t.ident, From: t.state, To: to}
	}
	t.state = to
	return nil
}

// MarkQueued records the handoff to the pool.
func (t *Task) MarkQueued() error {
	return t.transition(types.TaskQueued)
}

// MarkExecuted records the worker process that started the task.
func (t *Task) MarkExecuted(pid int, now time.Time) error {
	if t.state != types.TaskQueued {
		return &TransitionError{TaskIdent: t.ident, From: t.state, To: types.TaskExecuted}
	}
	if err := t.transition(types.TaskExecuted); err != nil {
		return err
	}
	t.workerPID = pid
	t.lastActivity = now
	return nil
}

// AddReport appends a report. Reports after FINISHED are rejected.
func (t *Task) AddReport(item types.ReportItem, now time.Time) error {
	if t.IsFinished() {
		return &TransitionError{TaskIdent: t.ident, From: t.state, To: t.state}
	}
	t.reports = append(t.reports, item)
	t.lastActivity = now
	return nil
}

// Finish moves the task to FINISHED. A pending kill reason takes precedence
// over finishType and drops the result.
func (t *Task) Finish(finishType types.FinishType, result any, now time.Time) error {
	if finishType == types.FinishUnfinished || !finishType.Valid() {
		return &TransitionError{TaskIdent: t.ident, From: t.state, To: types.TaskFinished}
	}
	if err := t.transition(types.TaskFinished); err != nil {
		return err
	}
	if t.killReason != types.FinishUnfinished {
		finishType, result = t.killReason, nil
	}
	t.finishType = finishType
	t.result = result
	t.lastActivity = now
	return nil
}

// RequestKill remembers why the task is being terminated.
func (t *Task) RequestKill(reason types.FinishType) {
	if !t.IsFinished() {
		t.killReason = reason
	}
}

// IsAbandoned reports whether a finished task sat unpolled longer than timeout.
func (t *Task) IsAbandoned(now time.Time, timeout time.Duration) bool {
	return t.IsFinished() && now.Sub(t.lastActivity) > timeout
}

// IsDefunct reports whether an unfinished task saw no activity for longer
// than timeout.
func (t *Task) IsDefunct(now time.Time, timeout time.Duration) bool {
	return !t.IsFinished() && now.Sub(t.lastActivity) > timeout
}

// DTO returns a snapshot safe to hand to callers.
func (t *Task) DTO() types.TaskDTO {
	reports := make([]types.ReportItem, len(t.reports))
	copy(reports, t.reports)
	return types.TaskDTO{
		TaskIdent:      t.ident,
		Command:        t.command,
		Reports:        reports,
		State:          t.state,
		TaskFinishType: t.finishType,
		Result:         t.result,
	}
}
