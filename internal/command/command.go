package command

import (
	"context"

	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Command is one administrative operation. Params are keyword arguments taken
// from the task's command envelope.
//
// Returning a *Failure finishes the task as FAIL with the failure's reports
// attached. Any other error, and any panic, finishes it as UNHANDLED_EXCEPTION.
type Command interface {
	Run(ctx context.Context, env *Env, params map[string]any) (any, error)
}

// CommandFunc adapts a function to Command.
type CommandFunc func(ctx context.Context, env *Env, params map[string]any) (any, error)

// Run calls f.
func (f CommandFunc) Run(ctx context.Context, env *Env, params map[string]any) (any, error) {
	return f(ctx, env, params)
}

// ReportSink receives report items emitted while a command runs.
type ReportSink interface {
	Report(item types.ReportItem)
}

// Env is the execution environment of a single command run.
type Env struct {
	Logger  *zap.Logger
	reports ReportSink
}

// NewEnv binds a logger and a report sink. A nil logger is replaced by a no-op one.
func NewEnv(log *zap.Logger, sink ReportSink) *Env {
	if log == nil {
		log = zap.NewNop()
	}
	return &Env{Logger: log, reports: sink}
}

// Report forwards one item to the sink. It never fails the command.
func (e *Env) Report(item types.ReportItem) {
	if e.reports == nil {
		return
	}
	e.reports.Report(item)
}

// Progress emits an INFO report.
func (e *Env) Progress(code, message string, payload map[string]any) {
	e.Report(types.NewReportItem(types.SeverityInfo, code, message, payload))
}
