package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"taskflow/domain"
	"taskflow/kanban"
)

type fakeAPI struct {
	mu      sync.Mutex
	tasks   []map[string]any
	updates map[string]string
	bodies  map[string]string
	queries []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/tasks":
		f.queries = append(f.queries, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tasks": f.tasks, "total": len(f.tasks), "page": 1, "limit": 12, "total_pages": 1,
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/tasks/stats":
		_ = json.NewEncoder(w).Encode(map[string]int{"total": len(f.tasks), "pending": 1, "in_progress": 1, "completed": 0})
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/tasks/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
		var body map[string]string
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		f.updates[id] = body["status"]
		f.bodies[id] = strings.TrimSpace(string(data))
		_ = json.NewEncoder(w).Encode(map[string]any{"_id": id, "title": "t", "status": body["status"], "priority": "low"})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no route"}`))
	}
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		tasks: []map[string]any{
			{"_id": "1", "title": "Write docs", "status": "pending", "priority": "high"},
			{"_id": "2", "title": "Ship release", "status": "in-progress", "priority": "medium", "category": "ops"},
		},
		updates: map[string]string{},
		bodies:  map[string]string{},
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetGlobals(t)
	t.Setenv("TASKCTL_CONFIG", filepath.Join(t.TempDir(), "none.yaml"))
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "taskctl" {
		t.Fatalf("unexpected root command %q", rootCmd.Use)
	}
	for _, name := range []string{"list", "stats", "add", "update", "delete", "subtasks", "board", "move", "provision"} {
		if c, _, err := rootCmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("missing command %s", name)
		}
	}
}

func TestListCommand(t *testing.T) {
	api, srv := newFakeAPI(t)
	t.Cleanup(func() { listStatus = "" })
	out, err := execute(t, "list", "--api-url", srv.URL, "--status", "in_progress")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Write docs") || !strings.Contains(out, "Ship release") {
		t.Fatalf("missing tasks in output: %s", out)
	}
	if !strings.Contains(out, "page 1 of 1 (2 tasks)") {
		t.Fatalf("missing pagination footer: %s", out)
	}
	if len(api.queries) != 1 || !strings.Contains(api.queries[0], "status=in-progress") {
		t.Fatalf("expected mapped status in query, got %v", api.queries)
	}
}

func TestListCommandReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"database down"}`))
	}))
	defer srv.Close()
	if _, err := execute(t, "list", "--api-url", srv.URL); err == nil || err.Error() != "database down" {
		t.Fatalf("expected api message, got %v", err)
	}
}

func TestMoveCommand(t *testing.T) {
	api, srv := newFakeAPI(t)
	out, err := execute(t, "move", "1", "completed", "--api-url", srv.URL)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if api.updates["1"] != "completed" {
		t.Fatalf("expected status update, got %v", api.updates)
	}
	if !strings.Contains(out, "moved 1 from todo to completed") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestMoveCommandOntoTaskInSameColumn(t *testing.T) {
	api, srv := newFakeAPI(t)
	out, err := execute(t, "move", "2", "in_progress", "--api-url", srv.URL)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(api.updates) != 0 {
		t.Fatalf("expected no update, got %v", api.updates)
	}
	if !strings.Contains(out, "already in in_progress") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestMoveCommandUnknownTarget(t *testing.T) {
	api, srv := newFakeAPI(t)
	if _, err := execute(t, "move", "1", "nowhere", "--api-url", srv.URL); err == nil {
		t.Fatal("expected error for unknown target")
	}
	if len(api.updates) != 0 {
		t.Fatalf("expected no update, got %v", api.updates)
	}
}

func TestRenderBoard(t *testing.T) {
	due := domain.Date{Time: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	b := kanban.BuildBoard([]domain.Task{
		{ID: "1", Title: "Write docs", Status: domain.StatusPending, Priority: domain.PriorityHigh, DueDate: &due},
		{ID: "2", Title: "Ship", Status: domain.StatusCompleted, Priority: domain.PriorityLow},
	})
	out := renderBoard(kanban.View(b, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), 30)
	for _, want := range []string{"To Do (1)", "In Progress (0)", "Completed (1)", "Write docs", "1d 0h 0m", "Done"} {
		if !strings.Contains(out, want) {
			t.Fatalf("board missing %q:\n%s", want, out)
		}
	}
}

func TestUpdateCommandClearsDueDate(t *testing.T) {
	api, srv := newFakeAPI(t)
	t.Cleanup(func() {
		updateDue = ""
		updateCmd.Flags().Lookup("due").Changed = false
	})
	if _, err := execute(t, "update", "1", "--due", "", "--api-url", srv.URL); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := api.bodies["1"]; got != `{"dueDate":""}` {
		t.Fatalf("unexpected update body %s", got)
	}
}
