package api

import (
	"context"

	"kanban-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	CreateTask(ctx context.Context, userID string, task domain.Task) (domain.Task, error)
	FetchTasks(ctx context.Context, userID string) ([]domain.Task, error)
	UpdateTaskStatus(ctx context.Context, userID, taskID string, status domain.Status) (domain.Task, error)
	SoftDeleteTask(ctx context.Context, userID, taskID string) error
	Ping(ctx context.Context) error
}

// NotFoundError is returned by Storage when the addressed task does not exist
// or has been soft-deleted.
type NotFoundError interface {
	error
	NotFound()
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the write fails so the
	// client may retry.
	Remove(ctx context.Context, userID, key string) error
}
