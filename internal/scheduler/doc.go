// Package scheduler tracks asynchronous tasks from creation to eviction.
//
// A Scheduler owns the task registry, the FIFO of tasks waiting for a worker
// and the receiving end of the worker message channel. It is not
// self-driving: an external loop calls Tick, which dispatches waiting tasks
// to the pool, applies every pending worker message and evicts tasks that
// were abandoned by their callers or whose workers stopped responding.
//
// Scheduler itself does no locking. Hosts that call it from several
// goroutines use Locked.
package scheduler
