package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskflow/domain"
)

const tracerName = "taskflow/storage"

// Repository is the remote task API as seen by the rest of the module.
type Repository interface {
	ListTasks(ctx context.Context, f domain.Filters) (domain.Page, error)
	Stats(ctx context.Context) (domain.Stats, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, d domain.Draft) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, u domain.Update) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	Subtasks(ctx context.Context, id string) ([]domain.Task, error)
}

// Client issues task requests against the remote API.
type Client struct {
	baseURL string
	bearer  string
	http    *http.Client
	tracer  trace.Tracer
	newKey  func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTracerProvider sets the provider used for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithIdempotencyKeys overrides the generator for create request keys.
func WithIdempotencyKeys(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.newKey = gen
		}
	}
}

// New creates a Client for the API at baseURL authenticating with bearer.
func New(baseURL, bearer string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u.String(),
		bearer:  bearer,
		http:    &http.Client{Timeout: 30 * time.Second},
		tracer:  otel.Tracer(tracerName),
		newKey:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListTasks fetches one page of tasks matching f.
func (c *Client) ListTasks(ctx context.Context, f domain.Filters) (domain.Page, error) {
	var page domain.Page
	err := c.do(ctx, request{op: "list", method: http.MethodGet, path: "/api/tasks", query: f.Values()}, &page)
	if page.Tasks == nil {
		page.Tasks = []domain.Task{}
	}
	return page, err
}

// Stats fetches the aggregate task counts.
func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	err := c.do(ctx, request{op: "stats", method: http.MethodGet, path: "/api/tasks/stats"}, &stats)
	return stats, err
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, request{op: "get", method: http.MethodGet, path: taskPath(id), taskID: id}, &task)
	return task, err
}

// CreateTask creates a task; the server assigns its identity and timestamps.
func (c *Client) CreateTask(ctx context.Context, d domain.Draft) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, request{
		op:             "create",
		method:         http.MethodPost,
		path:           "/api/tasks",
		body:           d,
		idempotencyKey: c.newKey(),
	}, &task)
	return task, err
}

// UpdateTask applies a partial update and returns the server's representation.
func (c *Client) UpdateTask(ctx context.Context, id string, u domain.Update) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, request{op: "update", method: http.MethodPut, path: taskPath(id), body: u, taskID: id}, &task)
	return task, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, request{op: "delete", method: http.MethodDelete, path: taskPath(id), taskID: id}, nil)
}

// Subtasks lists the tasks whose parent is id.
func (c *Client) Subtasks(ctx context.Context, id string) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := c.do(ctx, request{op: "subtasks", method: http.MethodGet, path: taskPath(id) + "/subtasks", taskID: id}, &tasks)
	return tasks, err
}

func taskPath(id string) string {
	return "/api/tasks/" + url.PathEscape(id)
}

type request struct {
	op             string
	method         string
	path           string
	query          url.Values
	body           any
	taskID         string
	idempotencyKey string
}

func (c *Client) do(ctx context.Context, r request, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "tasks."+r.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.method),
			attribute.String("url.path", r.path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	if r.taskID != "" {
		span.SetAttributes(attribute.String("taskflow.task.id", r.taskID))
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := sonic.ConfigStd.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s task: encode: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("%s task: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if r.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s task: %w", r.op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%s task: decode response: %w", r.op, err)
	}
	return nil
}
