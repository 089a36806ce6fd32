// Package client talks to a running clusterd task API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/fasthttp"

	"github.com/ClusterLabs/pcs-sub012/internal/config"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	HTTPCode     int    `json:"http_code"`
	HTTPError    string `json:"http_error"`
	ErrorMessage string `json:"error_message"`
}

// Error renders the status line and the server message.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.HTTPCode, e.HTTPError, e.ErrorMessage)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.HTTPCode == fasthttp.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// Client is a task API client. It is safe for concurrent use.
type Client struct {
	baseURL      string
	timeout      time.Duration
	pollInterval time.Duration
	http         *fasthttp.Client
}

// New creates a client for the server at cfg.URL.
func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", cfg.URL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		http: &fasthttp.Client{
			Name:                "clusterd-client",
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createTaskRequest struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

type createTaskResponse struct {
	TaskIdent string `json:"task_ident"`
}

// CreateTask schedules command and returns its ident.
func (c *Client) CreateTask(ctx context.Context, command string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := sonic.Marshal(createTaskRequest{Command: command, Params: params})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var resp createTaskResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/task", body, &resp); err != nil {
		return "", err
	}
	return resp.TaskIdent, nil
}

// GetTask fetches the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, ident string) (types.TaskDTO, error) {
	var dto types.TaskDTO
	err := c.do(ctx, fasthttp.MethodGet, "/task?task_ident="+url.QueryEscape(ident), nil, &dto)
	return dto, err
}

// KillTask asks the server to terminate a task.
func (c *Client) KillTask(ctx context.Context, ident string) error {
	return c.do(ctx, fasthttp.MethodDelete, "/task?task_ident="+url.QueryEscape(ident), nil, nil)
}

// WaitTask polls until the task is finished or ctx is done.
func (c *Client) WaitTask(ctx context.Context, ident string) (types.TaskDTO, error) {
	var dto types.TaskDTO
	poll := func() error {
		var err error
		dto, err = c.GetTask(ctx, ident)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !dto.Finished() {
			return errNotFinished
		}
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx)
	if err := backoff.Retry(poll, b); err != nil {
		if errors.Is(err, errNotFinished) && ctx.Err() != nil {
			return dto, ctx.Err()
		}
		return dto, err
	}
	return dto, nil
}

var errNotFinished = errors.New("task not finished")

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return fmt.Errorf("%s %s: timed out: %w", method, path, err)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		apiErr := &APIError{HTTPCode: status, HTTPError: fasthttp.StatusMessage(status)}
		if err := sonic.Unmarshal(resp.Body(), apiErr); err != nil {
			apiErr.ErrorMessage = strings.TrimSpace(string(resp.Body()))
		}
		return apiErr
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// Dialer adapts a listener-style dial function.
func Dialer(dial func() (net.Conn, error)) fasthttp.DialFunc {
	return func(string) (net.Conn, error) { return dial() }
}
