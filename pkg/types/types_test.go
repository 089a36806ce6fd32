package types

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStateOrdering(t *testing.T) {
	assert.Less(t, TaskCreated, TaskQueued)
	assert.Less(t, TaskQueued, TaskExecuted)
	assert.Less(t, TaskExecuted, TaskFinished)
}

func TestFinishTypeNames(t *testing.T) {
	assert.Equal(t, "UNHANDLED_EXCEPTION", FinishUnhandledException.String())
	assert.Equal(t, "USER_KILL", FinishUserKill.String())
	assert.Equal(t, "FinishType(42)", FinishType(42).String())
	assert.True(t, FinishSchedulerKill.IsKill())
	assert.False(t, FinishFail.IsKill())

	_, err := ParseFinishType("KILL")
	assert.Error(t, err)
}

func TestEnumJSONRejectsUnknown(t *testing.T) {
	var s TaskState
	assert.Error(t, json.Unmarshal([]byte(`"RUNNING"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`2`), &s))

	_, err := json.Marshal(TaskState(9))
	assert.Error(t, err)
}

func TestTaskDTOJSONShape(t *testing.T) {
	dto := TaskDTO{
		TaskIdent: "0123456789abcdef0123456789abcdef",
		Command:   NewCommandEnvelope("echo", map[string]any{"x": 1}),
		Reports:   []ReportItem{NewReportItem(SeverityInfo, "PROGRESS", "", nil)},
		State:     TaskFinished,
		Result:    map[string]any{"x": 1},
	}
	dto.TaskFinishType = FinishSuccess

	data, err := json.Marshal(dto)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"task_ident": "0123456789abcdef0123456789abcdef",
		"command": {"command_name": "echo", "params": {"x": 1}},
		"reports": [{"severity": "INFO", "code": "PROGRESS"}],
		"state": "FINISHED",
		"task_finish_type": "SUCCESS",
		"result": {"x": 1}
	}`, string(data))
	assert.True(t, dto.Finished())
}

func TestNewCommandEnvelopeCopiesParams(t *testing.T) {
	params := map[string]any{"node": "n1"}
	env := NewCommandEnvelope("cluster.status", params)
	params["node"] = "n2"
	assert.Equal(t, "n1", env.Params["node"])
}

func TestMessageConstructors(t *testing.T) {
	m := NewExecutedMessage("t", 77)
	assert.Equal(t, MessageExecuted, m.Kind)
	assert.Equal(t, 77, m.WorkerPID)

	m = NewFinishedMessage("t", FinishFail, nil)
	assert.Equal(t, MessageFinished, m.Kind)
	assert.Equal(t, FinishFail, m.FinishType)

	m = NewReportMessage("t", NewReportItem(SeverityError, "E", "boom", nil))
	require.NotNil(t, m.Report)
	assert.Equal(t, "E", m.Report.Code)
	assert.Equal(t, "REPORT", m.Kind.String())
}

func TestEnumNameProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("finish type names resolve back to the same value", prop.ForAll(
		func(v int) bool {
			f := FinishType(v)
			parsed, err := ParseFinishType(f.String())
			return err == nil && parsed == f
		},
		gen.IntRange(int(FinishUnfinished), int(FinishUserKill)),
	))

	properties.Property("task state names resolve back to the same value", prop.ForAll(
		func(v int) bool {
			s := TaskState(v)
			parsed, err := ParseTaskState(s.String())
			return err == nil && parsed == s
		},
		gen.IntRange(int(TaskCreated), int(TaskFinished)),
	))

	properties.TestingRun(t)
}
