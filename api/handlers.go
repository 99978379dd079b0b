package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
	"taskflow/kanban"
	"taskflow/storage"
	"taskflow/store"
)

const (
	maxBodySize = 64 * 1024
	streamPath  = "/stream"
)

// Dashboard is the task state the gateway serves. *store.Store satisfies it.
type Dashboard interface {
	Snapshot() store.Snapshot
	Categories() []string
	Subscribe() (<-chan struct{}, func())
	FetchTasks(ctx context.Context, f domain.Filters)
	FetchStats(ctx context.Context)
	AddTask(ctx context.Context, d domain.Draft) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, u domain.Update) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type SubtaskLister interface {
	Subtasks(ctx context.Context, id string) ([]domain.Task, error)
}

type SettingsStore interface {
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	SaveSettings(ctx context.Context, userID string, s domain.Settings) (domain.Settings, error)
}

type Mover interface {
	Drop(ctx context.Context, b kanban.Board, activeID, overID string) (kanban.Move, error)
}

// Deps are the collaborators behind the gateway routes. Settings may be nil,
// in which case defaults are served and saves are rejected. Without a
// Deduper, Idempotency-Key headers are ignored.
type Deps struct {
	Dashboard Dashboard
	Subtasks  SubtaskLister
	Settings  SettingsStore
	Mover     Mover
	Deduper   Deduper
	Auth      Authenticator
	Logger    *log.Logger
	Now       func() time.Time
}

type handlers struct {
	Deps
}

// Register wires up all gateway routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{Deps: d}
	e.JSONSerializer = jsonSerializer{}

	e.GET("/healthz", h.healthz)
	e.GET("/metrics", echoprometheus.NewHandler())

	g := e.Group("", requireAuth(d.Auth))
	g.GET("/api/dashboard", h.getDashboard)
	g.POST("/api/dashboard/refresh", h.refreshDashboard)
	g.GET("/api/board", h.getBoard)
	g.POST("/api/board/moves", h.postMove)
	g.POST("/api/tasks", h.createTask)
	g.PUT("/api/tasks/:id", h.updateTask)
	g.DELETE("/api/tasks/:id", h.deleteTask)
	g.GET("/api/tasks/:id/subtasks", h.getSubtasks)
	g.GET("/api/settings", h.getSettings)
	g.PUT("/api/settings", h.putSettings)
	g.GET(streamPath, h.stream)
}

type errorBody struct {
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

type dashboardResponse struct {
	store.Snapshot
	Categories []string `json:"categories"`
}

type moveRequest struct {
	ActiveID string `json:"activeId"`
	OverID   string `json:"overId"`
}

func (h *handlers) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *handlers) dashboard() dashboardResponse {
	return dashboardResponse{Snapshot: h.Dashboard.Snapshot(), Categories: h.Dashboard.Categories()}
}

func (h *handlers) getDashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dashboard())
}

// refreshDashboard reloads tasks and stats. Unset paging and sorting come
// from the caller's saved settings.
func (h *handlers) refreshDashboard(c echo.Context) error {
	var f domain.Filters
	if err := decodeBody(c, &f); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "invalid body"})
	}
	ctx := c.Request().Context()
	settings := h.settingsFor(ctx, userID(c))
	if f.Limit <= 0 {
		f.Limit = settings.PageSize
	}
	if f.SortBy == "" {
		f.SortBy = settings.SortBy
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	h.Dashboard.FetchTasks(ctx, f)
	h.Dashboard.FetchStats(ctx)
	return c.JSON(http.StatusOK, h.dashboard())
}

func (h *handlers) getBoard(c echo.Context) error {
	b := kanban.BuildBoard(h.Dashboard.Snapshot().Tasks)
	return c.JSON(http.StatusOK, kanban.View(b, h.Now()))
}

func (h *handlers) postMove(c echo.Context) error {
	var req moveRequest
	if err := decodeBody(c, &req); err != nil || req.ActiveID == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "invalid body"})
	}
	b := kanban.BuildBoard(h.Dashboard.Snapshot().Tasks)
	mv, err := h.Mover.Drop(c.Request().Context(), b, req.ActiveID, req.OverID)
	if err != nil {
		return h.mutationError(c, err)
	}
	return c.JSON(http.StatusOK, mv)
}

func (h *handlers) createTask(c echo.Context) error {
	var d domain.Draft
	if err := decodeBody(c, &d); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "invalid body"})
	}
	ctx := c.Request().Context()
	uid := userID(c)
	key := c.Request().Header.Get(headerIdempotencyKey)
	claimed := false
	if key != "" && h.Deduper != nil {
		fresh, err := h.Deduper.Claim(ctx, uid, key)
		switch {
		case err != nil:
			h.Logger.WithFields(log.Fields{"user_id": uid, "key": key}).Warnf("claim idempotency key: %v", err)
		case !fresh:
			return c.JSON(http.StatusConflict, errorBody{Message: "duplicate request"})
		default:
			claimed = true
		}
	}
	task, err := h.Dashboard.AddTask(ctx, d)
	if err != nil {
		if claimed {
			if rerr := h.Deduper.Release(ctx, uid, key); rerr != nil {
				h.Logger.WithField("key", key).Warnf("release idempotency key: %v", rerr)
			}
		}
		return h.mutationError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *handlers) updateTask(c echo.Context) error {
	var u domain.Update
	if err := decodeBody(c, &u); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "invalid body"})
	}
	task, err := h.Dashboard.UpdateTask(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return h.mutationError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) deleteTask(c echo.Context) error {
	if err := h.Dashboard.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return h.mutationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) getSubtasks(c echo.Context) error {
	tasks, err := h.Subtasks.Subtasks(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mutationError(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *handlers) getSettings(c echo.Context) error {
	if h.Settings == nil {
		return c.JSON(http.StatusOK, domain.DefaultSettings())
	}
	settings, err := h.Settings.FetchSettings(c.Request().Context(), userID(c))
	if err != nil {
		h.Logger.WithField("user_id", userID(c)).Errorf("fetch settings: %v", err)
		return c.JSON(http.StatusInternalServerError, errorBody{Message: err.Error()})
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *handlers) putSettings(c echo.Context) error {
	if h.Settings == nil {
		return c.JSON(http.StatusNotImplemented, errorBody{Message: "settings storage not configured"})
	}
	var s domain.Settings
	if err := decodeBody(c, &s); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "invalid body"})
	}
	saved, err := h.Settings.SaveSettings(c.Request().Context(), userID(c), s)
	if err != nil {
		h.Logger.WithField("user_id", userID(c)).Errorf("save settings: %v", err)
		return c.JSON(http.StatusInternalServerError, errorBody{Message: err.Error()})
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *handlers) settingsFor(ctx context.Context, userID string) domain.Settings {
	if h.Settings == nil {
		return domain.DefaultSettings()
	}
	s, err := h.Settings.FetchSettings(ctx, userID)
	if err != nil {
		h.Logger.WithField("user_id", userID).Warnf("fetch settings, using defaults: %v", err)
		return domain.DefaultSettings()
	}
	return s.WithDefaults()
}

// mutationError maps a failed mutation to a response. Remote API failures
// keep their status code and message.
func (h *handlers) mutationError(c echo.Context, err error) error {
	var verrs domain.ValidationErrors
	var apiErr *storage.APIError
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, errorBody{Message: err.Error(), Fields: verrs})
	case errors.Is(err, domain.ErrEmptyUpdate):
		return c.JSON(http.StatusBadRequest, errorBody{Message: err.Error()})
	case errors.As(err, &apiErr):
		return c.JSON(apiErr.StatusCode, errorBody{Message: apiErr.Message})
	case errors.Is(err, store.ErrClosed):
		return c.JSON(http.StatusServiceUnavailable, errorBody{Message: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, errorBody{Message: err.Error()})
	}
	h.Logger.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusBadGateway, errorBody{Message: err.Error()})
}

// decodeBody decodes a bounded JSON body. An empty body leaves v untouched.
func decodeBody(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i any) error {
	return decodeBody(c, i)
}
