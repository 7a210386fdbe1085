package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"

	"kanban-api/domain"
)

const testToken = "token.token.token"

// fakeAPI is a minimal in-memory task server speaking the REST contract.
type fakeAPI struct {
	mu     sync.Mutex
	nextID int
	tasks  []domain.Task

	failCreate bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		switch r.Method {
		case http.MethodGet:
			f.list(w)
		case http.MethodPost:
			f.create(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/tasks/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
		switch r.Method {
		case http.MethodPatch:
			f.updateStatus(w, r, id)
		case http.MethodDelete:
			f.delete(w, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func (f *fakeAPI) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *fakeAPI) list(w http.ResponseWriter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := sonic.Marshal(tasksResponse{Tasks: f.tasks})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (f *fakeAPI) create(w http.ResponseWriter, r *http.Request) {
	if f.failCreate {
		http.Error(w, "db down", http.StatusInternalServerError)
		return
	}
	var req createTaskRequest
	if err := sonic.ConfigStd.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.nextID++
	task := domain.Task{ID: "t" + strconv.Itoa(f.nextID), Title: req.Title, Status: domain.StatusTodo}
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()

	data, _ := sonic.Marshal(task)
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(data)
}

func (f *fakeAPI) updateStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req updateStatusRequest
	if err := sonic.ConfigStd.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = req.Status
			data, _ := sonic.Marshal(f.tasks[i])
			_, _ = w.Write(data)
			return
		}
	}
	http.Error(w, "task not found", http.StatusNotFound)
}

func (f *fakeAPI) delete(w http.ResponseWriter, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "task not found", http.StatusNotFound)
}

func newTestModel(t *testing.T, api *fakeAPI) *Model {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return NewModel(NewClient(srv.URL, testToken))
}

func TestRefreshPartitionsByStatus(t *testing.T) {
	api := &fakeAPI{tasks: []domain.Task{
		{ID: "t1", Title: "a", Status: domain.StatusTodo},
		{ID: "t2", Title: "b", Status: domain.StatusProgress},
		{ID: "t3", Title: "c", Status: domain.StatusDone},
		{ID: "t4", Title: "d", Status: domain.StatusTodo},
	}}
	m := newTestModel(t, api)

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	cols := m.Columns()
	if len(cols.Todo) != 2 || len(cols.Progress) != 1 || len(cols.Done) != 1 {
		t.Fatalf("unexpected partition: todo=%d progress=%d done=%d",
			len(cols.Todo), len(cols.Progress), len(cols.Done))
	}
	if cols.Progress[0].ID != "t2" || cols.Done[0].ID != "t3" {
		t.Fatalf("tasks landed in wrong columns: %+v", cols)
	}
}

func TestCreateTaskResyncs(t *testing.T) {
	api := &fakeAPI{}
	m := newTestModel(t, api)

	if err := m.CreateTask(context.Background(), "write spec"); err != nil {
		t.Fatalf("create: %v", err)
	}

	cols := m.Columns()
	if len(cols.Todo) != 1 || cols.Todo[0].Title != "write spec" {
		t.Fatalf("expected new task in todo column, got %+v", cols)
	}
}

func TestMoveTaskResyncs(t *testing.T) {
	api := &fakeAPI{tasks: []domain.Task{{ID: "t1", Title: "a", Status: domain.StatusTodo}}}
	m := newTestModel(t, api)

	if err := m.MoveTask(context.Background(), "t1", domain.StatusProgress); err != nil {
		t.Fatalf("move: %v", err)
	}

	cols := m.Columns()
	if len(cols.Todo) != 0 || len(cols.Progress) != 1 {
		t.Fatalf("expected task to move columns, got %+v", cols)
	}
}

func TestDeleteTaskResyncs(t *testing.T) {
	api := &fakeAPI{tasks: []domain.Task{{ID: "t1", Title: "a", Status: domain.StatusDone}}}
	m := newTestModel(t, api)

	if err := m.DeleteTask(context.Background(), "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	cols := m.Columns()
	if len(cols.Todo)+len(cols.Progress)+len(cols.Done) != 0 {
		t.Fatalf("expected empty board, got %+v", cols)
	}
}

func TestMutationErrorStillResyncs(t *testing.T) {
	api := &fakeAPI{
		tasks:      []domain.Task{{ID: "t1", Title: "a", Status: domain.StatusTodo}},
		failCreate: true,
	}
	m := newTestModel(t, api)

	err := m.CreateTask(context.Background(), "doomed")
	if err == nil {
		t.Fatalf("expected create to fail")
	}

	// Even after a failed mutation the board reflects the server state.
	cols := m.Columns()
	if len(cols.Todo) != 1 || cols.Todo[0].ID != "t1" {
		t.Fatalf("expected board to be re-synced, got %+v", cols)
	}
}

func TestMoveTaskNotFound(t *testing.T) {
	api := &fakeAPI{}
	m := newTestModel(t, api)

	if err := m.MoveTask(context.Background(), "missing", domain.StatusDone); err == nil {
		t.Fatalf("expected error for unknown task")
	}
}

func TestClientUnauthorized(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "wrong.token.value")
	if _, err := client.ListTasks(context.Background()); err == nil {
		t.Fatalf("expected unauthorized error")
	}
}
