package command

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/duke-git/lancet/v2/convertor"
	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Names of the commands installed by RegisterBuiltins.
const (
	CmdEcho          = "echo"
	CmdSleep         = "sleep"
	CmdFail          = "fail"
	CmdClusterStatus = "cluster.status"
)

// RegisterBuiltins installs the commands shipped with clusterd.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Command{
		CmdEcho:          CommandFunc(echo),
		CmdSleep:         CommandFunc(sleep),
		CmdFail:          CommandFunc(fail),
		CmdClusterStatus: CommandFunc(clusterStatus),
	}
	for name, cmd := range builtins {
		if err := r.Register(name, cmd); err != nil {
			return err
		}
	}
	return nil
}

// NewBuiltinRegistry returns a registry holding only the built-in commands.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		panic(err)
	}
	return r
}

func echo(_ context.Context, _ *Env, params map[string]any) (any, error) {
	return params, nil
}

func sleep(ctx context.Context, env *Env, params map[string]any) (any, error) {
	seconds, err := floatParam(params, "seconds", 1)
	if err != nil {
		return nil, NewInvalidParamError(CmdSleep, "seconds", err)
	}
	steps, err := intParam(params, "steps", 1)
	if err != nil {
		return nil, NewInvalidParamError(CmdSleep, "steps", err)
	}
	if seconds < 0 || steps < 1 {
		return nil, NewFailure(types.NewReportItem(types.SeverityError, "INVALID_OPTION_VALUE",
			"seconds must be non-negative and steps positive",
			map[string]any{"seconds": seconds, "steps": steps}))
	}

	step := time.Duration(seconds * float64(time.Second) / float64(steps))
	timer := time.NewTimer(step)
	defer timer.Stop()

	for i := 1; i <= int(steps); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		env.Progress("SLEEP_PROGRESS", "", map[string]any{"step": i, "steps": steps})
		timer.Reset(step)
	}
	return map[string]any{"slept": seconds}, nil
}

func fail(_ context.Context, env *Env, params map[string]any) (any, error) {
	code := stringParam(params, "code", "COMMAND_FAILED")
	message := stringParam(params, "message", "")
	env.Logger.Debug("failing on request", zap.String("code", code))
	return nil, NewFailure(types.NewReportItem(types.SeverityError, code, message, nil))
}

func clusterStatus(_ context.Context, env *Env, _ map[string]any) (any, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("resolve host name: %w", err)
	}
	env.Progress("STATUS_COLLECTED", "", map[string]any{"host": host})
	return map[string]any{
		"host":       host,
		"pid":        os.Getpid(),
		"go_version": runtime.Version(),
		"num_cpu":    runtime.NumCPU(),
	}, nil
}

func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	return convertor.ToFloat(v)
}

func intParam(params map[string]any, key string, def int64) (int64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	return convertor.ToInt(v)
}

func stringParam(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	return convertor.ToString(v)
}
