// Package board is the client-side view model for the kanban board. It keeps
// one list per status column and re-derives membership from a full re-fetch
// after every mutation, the same way the browser client behaves.
package board

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"kanban-api/domain"
)

// Client calls the task API with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type createTaskRequest struct {
	Title string `json:"title"`
}

type updateStatusRequest struct {
	Status domain.Status `json:"status"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return sonic.ConfigStd.NewDecoder(resp.Body).Decode(out)
}

// ListTasks fetches the full task set for the authenticated user.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var resp tasksResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// CreateTask creates a task in the todo column.
func (c *Client) CreateTask(ctx context.Context, title string) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", createTaskRequest{Title: title}, &task)
	return task, err
}

// MoveTask transitions the task to another status.
func (c *Client) MoveTask(ctx context.Context, id string, status domain.Status) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPatch, "/api/tasks/"+id, updateStatusRequest{Status: status}, &task)
	return task, err
}

// DeleteTask soft-deletes the task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil)
}

// Columns holds the three status lists the board renders.
type Columns struct {
	Todo     []domain.Task
	Progress []domain.Task
	Done     []domain.Task
}

// Model mirrors the server-side task set, partitioned by status. It is not
// safe for concurrent use; a UI drives it from a single loop.
type Model struct {
	client  *Client
	columns Columns
}

// NewModel creates an empty board backed by the given client. Call Refresh to
// load the initial task set.
func NewModel(client *Client) *Model {
	return &Model{client: client}
}

// Columns returns the current column snapshot.
func (m *Model) Columns() Columns {
	return m.columns
}

// Refresh fetches the full task set and re-partitions it by status.
func (m *Model) Refresh(ctx context.Context) error {
	tasks, err := m.client.ListTasks(ctx)
	if err != nil {
		return err
	}
	m.columns = partition(tasks)
	return nil
}

// CreateTask adds a task and re-syncs the board. The board is re-fetched even
// when the create fails so the view never drifts from the server.
func (m *Model) CreateTask(ctx context.Context, title string) error {
	if _, err := m.client.CreateTask(ctx, title); err != nil {
		_ = m.Refresh(ctx)
		return err
	}
	return m.Refresh(ctx)
}

// MoveTask transitions a task to another column and re-syncs the board.
func (m *Model) MoveTask(ctx context.Context, id string, status domain.Status) error {
	if _, err := m.client.MoveTask(ctx, id, status); err != nil {
		_ = m.Refresh(ctx)
		return err
	}
	return m.Refresh(ctx)
}

// DeleteTask removes a task from the board and re-syncs.
func (m *Model) DeleteTask(ctx context.Context, id string) error {
	if err := m.client.DeleteTask(ctx, id); err != nil {
		_ = m.Refresh(ctx)
		return err
	}
	return m.Refresh(ctx)
}

func partition(tasks []domain.Task) Columns {
	var cols Columns
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusProgress:
			cols.Progress = append(cols.Progress, t)
		case domain.StatusDone:
			cols.Done = append(cols.Done, t)
		default:
			cols.Todo = append(cols.Todo, t)
		}
	}
	return cols
}
