package storage

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kanban-api/domain"
)

// taskRecord is the relational shape of a task. Soft deletion is a
// gorm.DeletedAt column, so deleted rows drop out of every normal query and
// are never removed.
type taskRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"index;size:128;not null"`
	Title     string `gorm:"size:200;not null"`
	Status    string `gorm:"index;size:16;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (taskRecord) TableName() string { return "tasks" }

func (r taskRecord) toDomain() domain.Task {
	return domain.Task{
		ID:        r.ID,
		Title:     r.Title,
		Status:    domain.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type notFoundError struct {
	id string
}

func (e notFoundError) Error() string { return fmt.Sprintf("task %s not found", e.id) }

// NotFound marks the error for the API layer's not-found check.
func (e notFoundError) NotFound() {}

// Storage persists tasks in a single relational table through gorm.
type Storage struct {
	db *gorm.DB
}

// New opens the SQLite database at dsn and runs migrations.
func New(dsn string) (*Storage, error) {
	if dsn == "" {
		dsn = "kanban.db"
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		stdlog.New(os.Stdout, "", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &Storage{db: db}, nil
}

// CreateTask inserts the task for the given user. Timestamps are filled by
// gorm on insert.
func (s *Storage) CreateTask(ctx context.Context, userID string, task domain.Task) (domain.Task, error) {
	rec := taskRecord{
		ID:     task.ID,
		UserID: userID,
		Title:  task.Title,
		Status: string(task.Status),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return rec.toDomain(), nil
}

// FetchTasks returns every live task for the user, oldest first. Soft-deleted
// rows are excluded by gorm's default scope.
func (s *Storage) FetchTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	var recs []taskRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	tasks := make([]domain.Task, 0, len(recs))
	for _, r := range recs {
		tasks = append(tasks, r.toDomain())
	}
	return tasks, nil
}

// UpdateTaskStatus moves the task to another board column.
func (s *Storage) UpdateTaskStatus(ctx context.Context, userID, taskID string, status domain.Status) (domain.Task, error) {
	var rec taskRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, taskID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Task{}, notFoundError{id: taskID}
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("find task: %w", err)
	}
	rec.Status = string(status)
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return domain.Task{}, fmt.Errorf("update status: %w", err)
	}
	return rec.toDomain(), nil
}

// SoftDeleteTask marks the task as deleted. The row stays in the table with a
// deletion timestamp.
func (s *Storage) SoftDeleteTask(ctx context.Context, userID, taskID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&taskRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError{id: taskID}
	}
	return nil
}

// Ping verifies database connectivity for health checks.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ensureDirForSQLite creates the parent dir for a SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
