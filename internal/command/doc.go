// Package command holds the static registry of commands that worker processes
// can run, the execution environment handed to them and the error types that
// decide how a run is reported back to the scheduler.
package command
