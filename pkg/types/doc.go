// Package types holds the values exchanged between the task API, the scheduler
// and the worker processes: command envelopes, worker messages, the task state
// enumerations and the task DTO returned to callers.
package types
