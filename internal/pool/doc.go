// Package pool manages the fixed set of worker processes that execute tasks.
//
// Each worker is a child process speaking the codec stream on stdin/stdout.
// The pool hands at most one WorkerCommand to a worker at a time, queues the
// rest internally, recycles workers after a configured number of tasks and
// exposes Cancel so callers never signal worker processes behind its back.
package pool
