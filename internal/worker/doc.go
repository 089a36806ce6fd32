// Package worker is the code that runs inside a pooled worker process. It
// reads WorkerCommands, runs the named command and reports everything that
// happens as Messages on a one-directional stream back to the scheduler.
package worker
