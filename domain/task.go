package domain

import "time"

// Status determines which board column a task renders in.
type Status string

const (
	StatusTodo     Status = "todo"
	StatusProgress Status = "progress"
	StatusDone     Status = "done"
)

// Valid reports whether s names a known board column.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusProgress, StatusDone:
		return true
	}
	return false
}

// MaxTitleLen bounds task titles. Kept in sync with the column size in the
// storage schema and the validation tag on the create request.
const MaxTitleLen = 200

// Task represents a single board item. A task belongs to exactly one status
// at a time; soft-deleted tasks never surface here.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
