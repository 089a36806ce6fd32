package rest

import (
	"github.com/ClusterLabs/pcs-sub012/internal/scheduler"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// TaskService is the part of the scheduler the API needs. Implementations
// must be safe for concurrent use.
type TaskService interface {
	NewTask(cmd types.CommandEnvelope) (string, error)
	GetTask(ident string) (types.TaskDTO, error)
	KillTask(ident string) error
	Stats() scheduler.Stats
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	HTTPCode     int    `json:"http_code"`
	HTTPError    string `json:"http_error"`
	ErrorMessage string `json:"error_message"`
}

// CreateTaskResponse is returned by POST /task.
type CreateTaskResponse struct {
	TaskIdent string `json:"task_ident"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
