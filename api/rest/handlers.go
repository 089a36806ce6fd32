package rest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bytedance/sonic"
	"github.com/duke-git/lancet/v2/maputil"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/internal/scheduler"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

var createTaskKeys = []string{"command", "params"}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "ok"})
}

func (s *Server) stats(c *fiber.Ctx) error {
	return c.JSON(s.tasks.Stats())
}

// createTask handles POST /task. The body must hold exactly the keys
// "command" and "params".
func (s *Server) createTask(c *fiber.Ctx) error {
	cmd, err := parseCreateTask(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ident, err := s.tasks.NewTask(cmd)
	if err != nil {
		return s.serviceError(err)
	}
	return c.JSON(CreateTaskResponse{TaskIdent: ident})
}

func parseCreateTask(body []byte) (types.CommandEnvelope, error) {
	var raw map[string]any
	if err := sonic.Unmarshal(body, &raw); err != nil || raw == nil {
		return types.CommandEnvelope{}, errors.New("request body is not a JSON object")
	}

	keys := maputil.Keys(raw)
	slices.Sort(keys)
	if !slices.Equal(keys, createTaskKeys) {
		return types.CommandEnvelope{}, fmt.Errorf("request body must have exactly the keys %v, got %v", createTaskKeys, keys)
	}

	name, ok := raw["command"].(string)
	if !ok {
		return types.CommandEnvelope{}, errors.New(`"command" must be a string`)
	}
	params, ok := raw["params"].(map[string]any)
	if !ok {
		return types.CommandEnvelope{}, errors.New(`"params" must be an object`)
	}
	return types.NewCommandEnvelope(name, params), nil
}

func (s *Server) getTask(c *fiber.Ctx) error {
	ident, err := taskIdentParam(c)
	if err != nil {
		return err
	}

	dto, err := s.tasks.GetTask(ident)
	if err != nil {
		return s.serviceError(err)
	}
	return c.JSON(dto)
}

func (s *Server) killTask(c *fiber.Ctx) error {
	ident, err := taskIdentParam(c)
	if err != nil {
		return err
	}

	if err := s.tasks.KillTask(ident); err != nil {
		return s.serviceError(err)
	}
	c.Status(fiber.StatusOK)
	return nil
}

func taskIdentParam(c *fiber.Ctx) (string, error) {
	ident := c.Query("task_ident")
	if ident == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "missing task_ident")
	}
	if !scheduler.ValidIdent(ident) {
		return "", fiber.NewError(fiber.StatusBadRequest, "malformed task_ident")
	}
	return ident, nil
}

func (s *Server) serviceError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrTaskNotFound):
		return fiber.NewError(fiber.StatusNotFound, "task not found")
	case errors.Is(err, scheduler.ErrStopped), errors.Is(err, scheduler.ErrPoolUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("task service failed", zap.Error(err))
		return err
	}
}
