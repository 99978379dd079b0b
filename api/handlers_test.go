package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"taskflow/domain"
	"taskflow/kanban"
	"taskflow/storage"
	"taskflow/store"
)

type fakeDashboard struct {
	snap    store.Snapshot
	changes chan struct{}

	fetched  []domain.Filters
	stats    int
	drafts   []domain.Draft
	updates  map[string]domain.Update
	deleted  []string
	mutErr   error
	unsubbed bool
}

func newFakeDashboard(tasks ...domain.Task) *fakeDashboard {
	return &fakeDashboard{
		snap:    store.Snapshot{Tasks: tasks, Total: len(tasks), Page: 1, TotalPages: 1},
		changes: make(chan struct{}, 1),
		updates: map[string]domain.Update{},
	}
}

func (f *fakeDashboard) Snapshot() store.Snapshot { return f.snap }

func (f *fakeDashboard) Categories() []string { return domain.Categories(f.snap.Tasks) }

func (f *fakeDashboard) Subscribe() (<-chan struct{}, func()) {
	return f.changes, func() { f.unsubbed = true }
}

func (f *fakeDashboard) FetchTasks(ctx context.Context, filters domain.Filters) {
	f.fetched = append(f.fetched, filters)
}

func (f *fakeDashboard) FetchStats(ctx context.Context) {
	f.stats++
	f.snap.Stats = &domain.Stats{Total: len(f.snap.Tasks)}
}

func (f *fakeDashboard) AddTask(ctx context.Context, d domain.Draft) (domain.Task, error) {
	if f.mutErr != nil {
		return domain.Task{}, f.mutErr
	}
	f.drafts = append(f.drafts, d)
	return domain.Task{ID: "new", Title: d.Title}, nil
}

func (f *fakeDashboard) UpdateTask(ctx context.Context, id string, u domain.Update) (domain.Task, error) {
	if f.mutErr != nil {
		return domain.Task{}, f.mutErr
	}
	f.updates[id] = u
	return domain.Task{ID: id}, nil
}

func (f *fakeDashboard) DeleteTask(ctx context.Context, id string) error {
	if f.mutErr != nil {
		return f.mutErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeSettings struct {
	settings domain.Settings
	saved    []domain.Settings
}

func (f *fakeSettings) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	return f.settings, nil
}

func (f *fakeSettings) SaveSettings(ctx context.Context, userID string, s domain.Settings) (domain.Settings, error) {
	s = s.WithDefaults()
	f.saved = append(f.saved, s)
	return s, nil
}

type stubSubtasks struct{ err error }

func (s stubSubtasks) Subtasks(ctx context.Context, id string) ([]domain.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Task{{ID: id + "-1", ParentID: id}}, nil
}

type mockAuth struct{}

func (mockAuth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", errMissingAuthorization
	}
	return "user", nil
}

func newTestServer(t *testing.T, dash *fakeDashboard, settings SettingsStore) *echo.Echo {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e := echo.New()
	Register(e, Deps{
		Dashboard: dash,
		Subtasks:  stubSubtasks{},
		Settings:  settings,
		Mover:     kanban.NewEngine(dash, logger),
		Auth:      mockAuth{},
		Logger:    logger,
		Now:       func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	e := newTestServer(t, newFakeDashboard(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetDashboard(t *testing.T) {
	dash := newFakeDashboard(
		domain.Task{ID: "a", Category: "work", Status: domain.StatusPending},
		domain.Task{ID: "b", Category: "home", Status: domain.StatusCompleted},
	)
	rec := do(newTestServer(t, dash, nil), http.MethodGet, "/api/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var resp struct {
		Tasks      []domain.Task `json:"tasks"`
		Total      int           `json:"total"`
		Categories []string      `json:"categories"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Tasks) != 2 || resp.Total != 2 || strings.Join(resp.Categories, ",") != "work,home" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRefreshUsesSavedSettings(t *testing.T) {
	dash := newFakeDashboard()
	settings := &fakeSettings{settings: domain.Settings{ViewMode: domain.ViewKanban, PageSize: 24, SortBy: "dueDate"}}
	rec := do(newTestServer(t, dash, settings), http.MethodPost, "/api/dashboard/refresh", `{"status":"pending"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	want := domain.Filters{Status: "pending", SortBy: "dueDate", Page: 1, Limit: 24}
	if len(dash.fetched) != 1 || dash.fetched[0] != want {
		t.Fatalf("unexpected filters: %+v", dash.fetched)
	}
	if dash.stats != 1 {
		t.Fatalf("expected one stats fetch, got %d", dash.stats)
	}
}

func TestRefreshWithoutBodyUsesDefaults(t *testing.T) {
	dash := newFakeDashboard()
	rec := do(newTestServer(t, dash, nil), http.MethodPost, "/api/dashboard/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	want := domain.Filters{SortBy: domain.DefaultSortBy, Page: 1, Limit: domain.DefaultPageSize}
	if dash.fetched[0] != want {
		t.Fatalf("unexpected filters: %+v", dash.fetched[0])
	}
}

func TestRefreshRejectsUnknownFields(t *testing.T) {
	rec := do(newTestServer(t, newFakeDashboard(), nil), http.MethodPost, "/api/dashboard/refresh", `{"pageToken":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetBoard(t *testing.T) {
	due := domain.NewDate(2025, 3, 4)
	dash := newFakeDashboard(
		domain.Task{ID: "a", Status: domain.StatusPending, DueDate: &due},
		domain.Task{ID: "b", Status: domain.StatusInProgress},
	)
	rec := do(newTestServer(t, dash, nil), http.MethodGet, "/api/board", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var cols []struct {
		ID    string `json:"id"`
		Cards []struct {
			ID        string               `json:"id"`
			Countdown domain.CountdownView `json:"countdown"`
		} `json:"cards"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &cols); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cols) != 3 || cols[0].ID != "todo" || len(cols[0].Cards) != 1 || len(cols[1].Cards) != 1 {
		t.Fatalf("unexpected board: %+v", cols)
	}
	if got := cols[0].Cards[0].Countdown; got.Text != "2d 12h 0m" || got.Urgency != domain.UrgencySoon {
		t.Fatalf("unexpected countdown: %+v", got)
	}
}

func TestPostMoveAcrossColumns(t *testing.T) {
	dash := newFakeDashboard(
		domain.Task{ID: "a", Status: domain.StatusPending},
		domain.Task{ID: "b", Status: domain.StatusCompleted},
	)
	rec := do(newTestServer(t, dash, nil), http.MethodPost, "/api/board/moves", `{"activeId":"a","overId":"b"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	var mv kanban.Move
	if err := sonic.Unmarshal(rec.Body.Bytes(), &mv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !mv.Applied || mv.Status != domain.StatusCompleted {
		t.Fatalf("unexpected move: %+v", mv)
	}
	u, ok := dash.updates["a"]
	if !ok || len(dash.updates) != 1 || *u.Status != domain.StatusCompleted {
		t.Fatalf("unexpected updates: %+v", dash.updates)
	}
}

func TestPostMoveSameColumnIsNoop(t *testing.T) {
	dash := newFakeDashboard(domain.Task{ID: "a", Status: domain.StatusPending})
	rec := do(newTestServer(t, dash, nil), http.MethodPost, "/api/board/moves", `{"activeId":"a","overId":"todo"}`)
	if rec.Code != http.StatusOK || len(dash.updates) != 0 {
		t.Fatalf("unexpected result: %d updates=%v", rec.Code, dash.updates)
	}
}

func TestCreateTask(t *testing.T) {
	dash := newFakeDashboard()
	rec := do(newTestServer(t, dash, nil), http.MethodPost, "/api/tasks", `{"title":"Ship","priority":"high","dueDate":"2025-03-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	if len(dash.drafts) != 1 || dash.drafts[0].DueDate == nil || dash.drafts[0].Priority != domain.PriorityHigh {
		t.Fatalf("unexpected drafts: %+v", dash.drafts)
	}
}

func TestMutationErrorMapping(t *testing.T) {
	testCases := map[string]struct {
		err  error
		code int
		msg  string
	}{
		"validation": {domain.ValidationErrors{{Field: "title", Message: "is required"}}, http.StatusBadRequest, "invalid task: title: is required"},
		"empty":      {domain.ErrEmptyUpdate, http.StatusBadRequest, "update has no fields"},
		"remote":     {&storage.APIError{StatusCode: http.StatusNotFound, Message: "Task not found"}, http.StatusNotFound, "Task not found"},
		"closed":     {store.ErrClosed, http.StatusServiceUnavailable, "store closed"},
		"other":      {errors.New("dial tcp: refused"), http.StatusBadGateway, "dial tcp: refused"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			dash := newFakeDashboard()
			dash.mutErr = tc.err
			rec := do(newTestServer(t, dash, nil), http.MethodDelete, "/api/tasks/t1", "")
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			var body errorBody
			if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message != tc.msg {
				t.Fatalf("unexpected message: %q", body.Message)
			}
		})
	}
}

func TestUpdateAndDeleteTask(t *testing.T) {
	dash := newFakeDashboard()
	e := newTestServer(t, dash, nil)
	if rec := do(e, http.MethodPut, "/api/tasks/t1", `{"status":"in-progress"}`); rec.Code != http.StatusOK {
		t.Fatalf("update: %d", rec.Code)
	}
	if u := dash.updates["t1"]; u.Status == nil || *u.Status != domain.StatusInProgress {
		t.Fatalf("unexpected update: %+v", u)
	}
	if rec := do(e, http.MethodDelete, "/api/tasks/t1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if len(dash.deleted) != 1 || dash.deleted[0] != "t1" {
		t.Fatalf("unexpected deletes: %v", dash.deleted)
	}
}

func TestGetSubtasks(t *testing.T) {
	rec := do(newTestServer(t, newFakeDashboard(), nil), http.MethodGet, "/api/tasks/p1/subtasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ParentID != "p1" {
		t.Fatalf("unexpected subtasks: %+v", tasks)
	}
}

func TestSettingsRoutes(t *testing.T) {
	settings := &fakeSettings{settings: domain.DefaultSettings()}
	e := newTestServer(t, newFakeDashboard(), settings)

	rec := do(e, http.MethodGet, "/api/settings", "")
	var got domain.Settings
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil || got != domain.DefaultSettings() {
		t.Fatalf("unexpected settings: %+v err=%v", got, err)
	}

	rec = do(e, http.MethodPut, "/api/settings", `{"viewMode":"kanban"}`)
	if rec.Code != http.StatusOK || len(settings.saved) != 1 || settings.saved[0].ViewMode != domain.ViewKanban {
		t.Fatalf("unexpected save: %d %+v", rec.Code, settings.saved)
	}

	rec = do(newTestServer(t, newFakeDashboard(), nil), http.MethodPut, "/api/settings", `{"viewMode":"kanban"}`)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without settings storage, got %d", rec.Code)
	}
}

func TestStreamSendsSnapshotPerChange(t *testing.T) {
	dash := newFakeDashboard(domain.Task{ID: "a"})
	dash.changes <- struct{}{}
	close(dash.changes)

	rec := do(newTestServer(t, dash, nil), http.MethodGet, "/stream", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if n := strings.Count(rec.Body.String(), "data: "); n != 2 {
		t.Fatalf("expected 2 events, got %d: %s", n, rec.Body.String())
	}
	if !dash.unsubbed {
		t.Fatalf("stream must unsubscribe on exit")
	}
}
