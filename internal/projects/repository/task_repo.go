package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally-backend/internal/docstore"
	"github.com/tallyhq/tally-backend/internal/projects/domain"
)

type TaskRepository struct {
	store docstore.Store
	Now   func() time.Time
}

func NewTaskRepository(store docstore.Store) *TaskRepository {
	return &TaskRepository{
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func tasksPath(ownerID, projectID string) string {
	return docstore.Path("users", ownerID, "projects", projectID, "tasks")
}

func taskPath(ownerID, projectID, taskID string) string {
	return docstore.Path("users", ownerID, "projects", projectID, "tasks", taskID)
}

func (r *TaskRepository) Create(ctx context.Context, ownerID, projectID string, t *domain.Task) error {
	now := r.Now()
	t.ID = uuid.New().String()
	t.ProjectID = projectID
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := r.store.Set(ctx, taskPath(ownerID, projectID, t.ID), t); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Get(ctx context.Context, ownerID, projectID, taskID string) (*domain.Task, error) {
	var t domain.Task
	err := r.store.Get(ctx, taskPath(ownerID, projectID, taskID), &t)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// List returns every task of a project in creation order.
func (r *TaskRepository) List(ctx context.Context, ownerID, projectID string) ([]domain.Task, error) {
	docs, err := r.store.Query(ctx, tasksPath(ownerID, projectID), docstore.Query{OrderBy: "createdAt"})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return docstore.DecodeAll[domain.Task](docs)
}

func (r *TaskRepository) Update(ctx context.Context, ownerID, projectID, taskID string, fields map[string]any) (*domain.Task, error) {
	fields["updatedAt"] = r.Now()
	err := r.store.Merge(ctx, taskPath(ownerID, projectID, taskID), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return r.Get(ctx, ownerID, projectID, taskID)
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, projectID, taskID string) error {
	if err := r.store.Delete(ctx, taskPath(ownerID, projectID, taskID)); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
