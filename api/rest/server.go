// Package rest serves the task API over HTTP.
package rest

import (
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/internal/config"
)

// Server is the task API.
type Server struct {
	app    *fiber.App
	tasks  TaskService
	config config.ServerConfig
	log    *zap.Logger
}

// NewServer wires routes and middleware around tasks.
func NewServer(tasks TaskService, cfg config.ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          customErrorHandler,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		AppName:               "clusterd",
	})

	server := &Server{
		app:    app,
		tasks:  tasks,
		config: cfg,
		log:    log.Named("api"),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			s.log.Error("handler panic", zap.Any("panic", e), zap.String("path", c.Path()), zap.Stack("stack"))
		},
	}))
	s.app.Use(requestid.New())
	s.app.Use(s.accessLog())
}

// accessLog logs one line per request after the handler and the error
// handler have run.
func (s *Server) accessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		s.log.Info("request",
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthCheck)
	s.app.Get("/stats", s.stats)

	s.app.Post("/task", s.createTask)
	s.app.Get("/task", s.getTask)
	s.app.Delete("/task", s.killTask)
}

// Start listens on the configured address and blocks.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

// ShutdownWithTimeout stops accepting connections and waits for in-flight
// requests up to timeout.
func (s *Server) ShutdownWithTimeout(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// customErrorHandler renders every error in the task API error shape.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		HTTPCode:     code,
		HTTPError:    utils.StatusMessage(code),
		ErrorMessage: message,
	})
}
