package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/internal/command"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Deps is what the entry point needs from its process.
type Deps struct {
	Registry     *command.Registry
	Outbox       Outbox
	Logger       *zap.Logger
	PID          int
	RelayTimeout time.Duration
}

// Execute runs one WorkerCommand. It always emits Executed first and exactly
// one Finished last; every outcome is expressed as messages. The returned
// error is non-nil only when the outbox stopped accepting messages.
func Execute(ctx context.Context, wc types.WorkerCommand, deps Deps) (types.FinishType, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	log := deps.Logger.With(
		zap.String("task_ident", wc.TaskIdent),
		zap.String("command", wc.Command.CommandName),
	)

	if err := deps.Outbox.Send(ctx, types.NewExecutedMessage(wc.TaskIdent, deps.PID)); err != nil {
		return types.FinishUnfinished, fmt.Errorf("send executed: %w", err)
	}

	finishType, result, reports := run(ctx, wc, deps, log)

	for _, item := range reports {
		if err := deps.Outbox.Send(ctx, types.NewReportMessage(wc.TaskIdent, item)); err != nil {
			return finishType, fmt.Errorf("send failure report: %w", err)
		}
	}
	if err := deps.Outbox.Send(ctx, types.NewFinishedMessage(wc.TaskIdent, finishType, result)); err != nil {
		return finishType, fmt.Errorf("send finished: %w", err)
	}

	log.Debug("task finished", zap.Stringer("finish_type", finishType))
	return finishType, nil
}

func run(ctx context.Context, wc types.WorkerCommand, deps Deps, log *zap.Logger) (finishType types.FinishType, result any, reports []types.ReportItem) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("command panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			finishType, result, reports = types.FinishUnhandledException, nil, nil
		}
	}()

	cmd, err := deps.Registry.Lookup(wc.Command.CommandName)
	if err != nil {
		log.Error("command lookup failed", zap.Error(err))
		return types.FinishUnhandledException, nil, nil
	}

	relay := NewRelay(wc.TaskIdent, deps.Outbox, deps.RelayTimeout, log)
	env := command.NewEnv(log, relay)

	value, err := cmd.Run(ctx, env, wc.Command.Params)
	if err == nil {
		return types.FinishSuccess, value, nil
	}
	if failure, ok := command.AsFailure(err); ok {
		log.Info("command failed", zap.Int("reports", len(failure.Reports)))
		return types.FinishFail, nil, failure.Reports
	}
	log.Error("command raised an unhandled error", zap.Error(err))
	return types.FinishUnhandledException, nil, nil
}
