package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

func noop(context.Context, *Env, map[string]any) (any, error) { return nil, nil }

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("node.add", CommandFunc(noop)))

	cmd, err := r.Lookup("node.add")
	require.NoError(t, err)
	assert.NotNil(t, cmd)
	assert.True(t, r.Has("node.add"))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", CommandFunc(noop)))
	assert.Error(t, r.Register("x", nil))

	require.NoError(t, r.Register("x", CommandFunc(noop)))
	err := r.Register("x", CommandFunc(noop))
	require.Error(t, err)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, ErrCodeRegistration, cmdErr.Code)

	assert.Panics(t, func() { r.MustRegister("x", CommandFunc(noop)) })
}

func TestRegistryLookupNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("resource.create")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsNotFound(errors.New("other")))
	assert.Contains(t, err.Error(), "COMMAND_NOT_FOUND")
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewBuiltinRegistry()
	assert.Equal(t, []string{CmdClusterStatus, CmdEcho, CmdFail, CmdSleep}, r.Names())
	assert.Error(t, RegisterBuiltins(r), "builtins cannot be registered twice")
}

func TestFailure(t *testing.T) {
	f := NewFailure(
		types.NewReportItem(types.SeverityError, "NODE_NOT_FOUND", "", nil),
		types.NewReportItem(types.SeverityError, "CIB_PUSH_ERROR", "", nil),
	)
	assert.Equal(t, "command failed: NODE_NOT_FOUND, CIB_PUSH_ERROR", f.Error())
	assert.Equal(t, "command failed", NewFailure().Error())

	got, ok := AsFailure(fmt.Errorf("run: %w", f))
	require.True(t, ok)
	assert.Len(t, got.Reports, 2)

	_, ok = AsFailure(errors.New("boom"))
	assert.False(t, ok)
}

type collectSink struct{ items []types.ReportItem }

func (c *collectSink) Report(item types.ReportItem) { c.items = append(c.items, item) }

func TestEnvReport(t *testing.T) {
	sink := &collectSink{}
	env := NewEnv(nil, sink)
	require.NotNil(t, env.Logger)

	env.Progress("STEP", "half way", map[string]any{"pct": 50})
	require.Len(t, sink.items, 1)
	assert.Equal(t, types.SeverityInfo, sink.items[0].Severity)
	assert.Equal(t, "STEP", sink.items[0].Code)

	assert.NotPanics(t, func() { NewEnv(nil, nil).Progress("X", "", nil) })
}
