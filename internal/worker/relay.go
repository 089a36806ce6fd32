package worker

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Relay forwards reports emitted by a running command as Report messages for
// one task. When the outbox stays full for longer than the timeout the report
// is dropped, counted and logged; the command keeps running.
type Relay struct {
	taskIdent string
	outbox    Outbox
	timeout   time.Duration
	log       *zap.Logger
	dropped   atomic.Int64
}

// NewRelay creates a relay scoped to taskIdent.
func NewRelay(taskIdent string, outbox Outbox, timeout time.Duration, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{taskIdent: taskIdent, outbox: outbox, timeout: timeout, log: log}
}

// Report implements command.ReportSink.
func (r *Relay) Report(item types.ReportItem) {
	if r.outbox.TrySend(types.NewReportMessage(r.taskIdent, item), r.timeout) {
		return
	}
	n := r.dropped.Add(1)
	r.log.Warn("report dropped, message stream is saturated",
		zap.String("task_ident", r.taskIdent),
		zap.String("code", item.Code),
		zap.Duration("waited", r.timeout),
		zap.Int64("dropped_total", n),
	)
}

// Dropped returns how many reports were discarded.
func (r *Relay) Dropped() int64 {
	return r.dropped.Load()
}
