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

// ProjectRepository provides persistence operations for projects.
// Every method takes the owner id; paths are always users/{owner}/projects/...
type ProjectRepository struct {
	store docstore.Store
	Now   func() time.Time
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(store docstore.Store) *ProjectRepository {
	return &ProjectRepository{
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func projectsPath(ownerID string) string {
	return docstore.Path("users", ownerID, "projects")
}

func projectPath(ownerID, projectID string) string {
	return docstore.Path("users", ownerID, "projects", projectID)
}

// Create assigns id and timestamps and stores p. Tasks are never written with
// the project document.
func (r *ProjectRepository) Create(ctx context.Context, ownerID string, p *domain.Project) error {
	if ownerID == "" {
		return fmt.Errorf("owner id required")
	}
	now := r.Now()
	p.ID = uuid.New().String()
	p.OwnerID = ownerID
	p.CreatedAt = now
	p.UpdatedAt = now
	p.LastActivity = now

	doc := *p
	doc.Tasks = nil
	if err := r.store.Set(ctx, projectPath(ownerID, p.ID), &doc); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// Get returns the project document without tasks.
func (r *ProjectRepository) Get(ctx context.Context, ownerID, projectID string) (*domain.Project, error) {
	var p domain.Project
	err := r.store.Get(ctx, projectPath(ownerID, projectID), &p)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// List returns the owner's projects, most recently active first.
func (r *ProjectRepository) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	return r.query(ctx, ownerID, docstore.Query{OrderBy: "lastActivity", Dir: docstore.Desc})
}

// ListByClient returns projects linked to a client.
func (r *ProjectRepository) ListByClient(ctx context.Context, ownerID, clientID string) ([]domain.Project, error) {
	return r.query(ctx, ownerID, docstore.Query{
		Where:   []docstore.Filter{{Field: "clientId", Value: clientID}},
		OrderBy: "lastActivity",
		Dir:     docstore.Desc,
	})
}

func (r *ProjectRepository) query(ctx context.Context, ownerID string, q docstore.Query) ([]domain.Project, error) {
	docs, err := r.store.Query(ctx, projectsPath(ownerID), q)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return docstore.DecodeAll[domain.Project](docs)
}

// Update merges fields and stamps updatedAt and lastActivity.
func (r *ProjectRepository) Update(ctx context.Context, ownerID, projectID string, fields map[string]any) (*domain.Project, error) {
	now := r.Now()
	fields["updatedAt"] = now
	fields["lastActivity"] = now
	if err := r.merge(ctx, ownerID, projectID, fields); err != nil {
		return nil, err
	}
	return r.Get(ctx, ownerID, projectID)
}

// Touch marks the project as changed because one of its children changed.
func (r *ProjectRepository) Touch(ctx context.Context, ownerID, projectID string) error {
	now := r.Now()
	return r.merge(ctx, ownerID, projectID, map[string]any{
		"updatedAt":    now,
		"lastActivity": now,
	})
}

func (r *ProjectRepository) merge(ctx context.Context, ownerID, projectID string, fields map[string]any) error {
	err := r.store.Merge(ctx, projectPath(ownerID, projectID), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.ErrProjectNotFound
	}
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// Delete removes only the project document; children are the caller's job.
func (r *ProjectRepository) Delete(ctx context.Context, ownerID, projectID string) error {
	if err := r.store.Delete(ctx, projectPath(ownerID, projectID)); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
