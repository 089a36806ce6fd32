package types

import (
	"fmt"
	"strconv"
)

// TaskState is the lifecycle position of a task. States are ordered and a task
// only ever moves forward.
type TaskState int

const (
	TaskCreated TaskState = iota
	TaskQueued
	TaskExecuted
	TaskFinished
)

var taskStateNames = map[TaskState]string{
	TaskCreated:  "CREATED",
	TaskQueued:   "QUEUED",
	TaskExecuted: "EXECUTED",
	TaskFinished: "FINISHED",
}

// String returns the wire name of the state.
func (s TaskState) String() string {
	if name, ok := taskStateNames[s]; ok {
		return name
	}
	return "TaskState(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether s is one of the declared states.
func (s TaskState) Valid() bool {
	_, ok := taskStateNames[s]
	return ok
}

// ParseTaskState resolves a wire name.
func ParseTaskState(name string) (TaskState, error) {
	for s, n := range taskStateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown task state %q", name)
}

// MarshalJSON encodes the state by its wire name.
func (s TaskState) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid task state %d", int(s))
	}
	return []byte(strconv.Quote(s.String())), nil
}

// UnmarshalJSON accepts a wire name.
func (s *TaskState) UnmarshalJSON(data []byte) error {
	name, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("task state must be a string: %w", err)
	}
	parsed, err := ParseTaskState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FinishType is the outcome recorded when a task reaches TaskFinished.
type FinishType int

const (
	// FinishUnfinished is the zero value and is never reported for a finished task.
	FinishUnfinished FinishType = iota
	FinishUnhandledException
	// FinishFail is a recognized domain failure; its reports are attached to the task.
	FinishFail
	FinishSuccess
	// FinishSchedulerKill marks tasks terminated by the scheduler itself, on
	// shutdown or when the worker stopped responding.
	FinishSchedulerKill
	FinishUserKill
)

var finishTypeNames = map[FinishType]string{
	FinishUnfinished:         "UNFINISHED",
	FinishUnhandledException: "UNHANDLED_EXCEPTION",
	FinishFail:               "FAIL",
	FinishSuccess:            "SUCCESS",
	FinishSchedulerKill:      "SCHEDULER_KILL",
	FinishUserKill:           "USER_KILL",
}

// String returns the wire name of the finish type.
func (f FinishType) String() string {
	if name, ok := finishTypeNames[f]; ok {
		return name
	}
	return "FinishType(" + strconv.Itoa(int(f)) + ")"
}

// Valid reports whether f is one of the declared finish types.
func (f FinishType) Valid() bool {
	_, ok := finishTypeNames[f]
	return ok
}

// IsKill reports whether the task was terminated rather than completing on its own.
func (f FinishType) IsKill() bool {
	return f == FinishSchedulerKill || f == FinishUserKill
}

// ParseFinishType resolves a wire name.
func ParseFinishType(name string) (FinishType, error) {
	for f, n := range finishTypeNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown finish type %q", name)
}

// MarshalJSON encodes the finish type by its wire name.
func (f FinishType) MarshalJSON() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid finish type %d", int(f))
	}
	return []byte(strconv.Quote(f.String())), nil
}

// UnmarshalJSON accepts a wire name.
func (f *FinishType) UnmarshalJSON(data []byte) error {
	name, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("finish type must be a string: %w", err)
	}
	parsed, err := ParseFinishType(name)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
