package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterLabs/pcs-sub012/internal/config"
	"github.com/ClusterLabs/pcs-sub012/internal/scheduler"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

const knownIdent = "0123456789abcdef0123456789abcdef"

// mockTasks implements TaskService for testing.
type mockTasks struct {
	created []types.CommandEnvelope
	killed  []string
	tasks   map[string]types.TaskDTO
	newErr  error
}

func newMockTasks() *mockTasks {
	return &mockTasks{tasks: map[string]types.TaskDTO{
		knownIdent: {
			TaskIdent: knownIdent,
			Command:   types.NewCommandEnvelope("echo", map[string]any{"x": 1}),
			Reports:   []types.ReportItem{},
			State:     types.TaskExecuted,
		},
	}}
}

func (m *mockTasks) NewTask(cmd types.CommandEnvelope) (string, error) {
	if m.newErr != nil {
		return "", m.newErr
	}
	m.created = append(m.created, cmd)
	return knownIdent, nil
}

func (m *mockTasks) GetTask(ident string) (types.TaskDTO, error) {
	dto, ok := m.tasks[ident]
	if !ok {
		return types.TaskDTO{}, scheduler.ErrTaskNotFound
	}
	return dto, nil
}

func (m *mockTasks) KillTask(ident string) error {
	if _, ok := m.tasks[ident]; !ok {
		return scheduler.ErrTaskNotFound
	}
	m.killed = append(m.killed, ident)
	return nil
}

func (m *mockTasks) Stats() scheduler.Stats {
	return scheduler.Stats{Tasks: len(m.tasks), ByState: map[string]int{"EXECUTED": 1}}
}

func newTestServer(tasks TaskService) *Server {
	return NewServer(tasks, config.ServerConfig{Address: "127.0.0.1:0"}, nil)
}

func do(t *testing.T, s *Server, method, target, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestHealthCheck(t *testing.T) {
	code, body := do(t, newTestServer(newMockTasks()), "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCreateTask(t *testing.T) {
	tasks := newMockTasks()
	s := newTestServer(tasks)

	code, body := do(t, s, "POST", "/task", `{"command":"echo","params":{"x":1,"y":"z"}}`)
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.JSONEq(t, `{"task_ident":"`+knownIdent+`"}`, string(body))

	require.Len(t, tasks.created, 1)
	assert.Equal(t, "echo", tasks.created[0].CommandName)
	assert.Equal(t, map[string]any{"x": float64(1), "y": "z"}, tasks.created[0].Params)
}

func TestCreateTaskRejectsBadBodies(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"command":`,
		"not an object":   `[1,2]`,
		"missing params":  `{"command":"echo"}`,
		"missing command": `{"params":{}}`,
		"extra key":       `{"command":"echo","params":{},"extra":1}`,
		"misnamed key":    `{"cmd":"echo","params":{}}`,
		"command type":    `{"command":5,"params":{}}`,
		"params type":     `{"command":"echo","params":[]}`,
		"empty":           ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			tasks := newMockTasks()
			code, resp := do(t, newTestServer(tasks), "POST", "/task", body)
			assert.Equal(t, fiber.StatusBadRequest, code)
			e := decodeError(t, resp)
			assert.Equal(t, 400, e.HTTPCode)
			assert.Equal(t, "Bad Request", e.HTTPError)
			assert.NotEmpty(t, e.ErrorMessage)
			assert.Empty(t, tasks.created)
		})
	}
}

func TestCreateTaskServiceFailure(t *testing.T) {
	tasks := newMockTasks()
	tasks.newErr = errors.New("ident generation failed")
	code, body := do(t, newTestServer(tasks), "POST", "/task", `{"command":"echo","params":{}}`)
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, 500, decodeError(t, body).HTTPCode)

	tasks.newErr = scheduler.ErrStopped
	code, _ = do(t, newTestServer(tasks), "POST", "/task", `{"command":"echo","params":{}}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, code)

	tasks.newErr = fmt.Errorf("%w: task abc: broken pipe", scheduler.ErrPoolUnavailable)
	code, body = do(t, newTestServer(tasks), "POST", "/task", `{"command":"echo","params":{}}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "Service Unavailable", decodeError(t, body).HTTPError)
}

func TestGetTask(t *testing.T) {
	s := newTestServer(newMockTasks())

	code, body := do(t, s, "GET", "/task?task_ident="+knownIdent, "")
	require.Equal(t, fiber.StatusOK, code)
	assert.JSONEq(t, `{
		"task_ident": "`+knownIdent+`",
		"command": {"command_name": "echo", "params": {"x": 1}},
		"reports": [],
		"state": "EXECUTED",
		"task_finish_type": "UNFINISHED",
		"result": null
	}`, string(body))
}

func TestTaskIdentValidation(t *testing.T) {
	for _, method := range []string{"GET", "DELETE"} {
		for _, target := range []string{
			"/task",
			"/task?task_ident=",
			"/task?task_ident=xyz",
			"/task?task_ident=0123456789abcdef0123456789abcdeg",
			"/task?task_ident=0123456789abcdef0123456789abcdef00",
		} {
			code, body := do(t, newTestServer(newMockTasks()), method, target, "")
			assert.Equal(t, fiber.StatusBadRequest, code, method+" "+target)
			assert.Equal(t, "Bad Request", decodeError(t, body).HTTPError)
		}
	}
}

func TestUnknownTaskIs404(t *testing.T) {
	s := newTestServer(newMockTasks())
	unknown := "ffffffffffffffffffffffffffffffff"

	for _, method := range []string{"GET", "DELETE"} {
		code, body := do(t, s, method, "/task?task_ident="+unknown, "")
		assert.Equal(t, fiber.StatusNotFound, code)
		e := decodeError(t, body)
		assert.Equal(t, 404, e.HTTPCode)
		assert.Equal(t, "Not Found", e.HTTPError)
	}
}

func TestKillTask(t *testing.T) {
	tasks := newMockTasks()
	code, body := do(t, newTestServer(tasks), "DELETE", "/task?task_ident="+knownIdent, "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Empty(t, body)
	assert.Equal(t, []string{knownIdent}, tasks.killed)
}

func TestStats(t *testing.T) {
	code, body := do(t, newTestServer(newMockTasks()), "GET", "/stats", "")
	require.Equal(t, fiber.StatusOK, code)
	var stats scheduler.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.Tasks)
	assert.Equal(t, 1, stats.ByState["EXECUTED"])
}

func TestRequestIDHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := newTestServer(newMockTasks()).App().Test(req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}
