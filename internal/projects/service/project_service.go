package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/changes"
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/projects/domain"
	"github.com/tallyhq/tally-backend/internal/projects/repository"
)

// deleteParallelism bounds concurrent child deletes during project removal.
const deleteParallelism = 8

// ActivityRecorder appends audit entries. Implementations never fail the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, ownerID string, typ activity.Type, action activity.Action, description string)
}

// ProjectService owns projects and the tasks and time entries nested under
// them, keeping the parent's updatedAt/lastActivity in step with its children.
type ProjectService struct {
	projects *repository.ProjectRepository
	tasks    *repository.TaskRepository
	entries  *repository.TimeEntryRepository
	activity ActivityRecorder
	changes  changes.Publisher
	log      logging.Logger

	// Now supplies timer start/stop instants.
	Now func() time.Time
}

func NewProjectService(
	projects *repository.ProjectRepository,
	tasks *repository.TaskRepository,
	entries *repository.TimeEntryRepository,
	rec ActivityRecorder,
	pub changes.Publisher,
	log logging.Logger,
) *ProjectService {
	return &ProjectService{
		projects: projects,
		tasks:    tasks,
		entries:  entries,
		activity: rec,
		changes:  pub,
		log:      log.With("component", "projects"),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProjectService) notify(ctx context.Context, ownerID, typ, id string, action activity.Action) {
	s.changes.Publish(ctx, ownerID, changes.Notice{Type: typ, ID: id, Action: string(action)})
}

// CreateProject creates a new project. Status defaults to active.
func (s *ProjectService) CreateProject(ctx context.Context, ownerID string, req domain.CreateProjectRequest) (*domain.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}
	status := req.Status
	if status == "" {
		status = domain.ProjectActive
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	p := &domain.Project{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		ClientID:    req.ClientID,
	}
	if err := s.projects.Create(ctx, ownerID, p); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, activity.TypeProject, activity.ActionCreated, fmt.Sprintf("Created project %q", p.Name))
	s.notify(ctx, ownerID, "project", p.ID, activity.ActionCreated)
	return p, nil
}

// ListProjects returns projects without tasks, most recently active first.
func (s *ProjectService) ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error) {
	return s.projects.List(ctx, ownerID)
}

// GetProject returns the project with all of its tasks.
func (s *ProjectService) GetProject(ctx context.Context, ownerID, projectID string) (*domain.Project, error) {
	p, err := s.projects.Get(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.List(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return p, nil
}

// ProjectsForClient returns the client's projects, optionally with tasks.
func (s *ProjectService) ProjectsForClient(ctx context.Context, ownerID, clientID string, withTasks bool) ([]domain.Project, error) {
	projects, err := s.projects.ListByClient(ctx, ownerID, clientID)
	if err != nil {
		return nil, err
	}
	if !withTasks {
		return projects, nil
	}
	for i := range projects {
		tasks, err := s.tasks.List(ctx, ownerID, projects[i].ID)
		if err != nil {
			return nil, err
		}
		projects[i].Tasks = tasks
	}
	return projects, nil
}

// UpdateProject applies the non-nil fields of req. Renaming does not rewrite
// projectName snapshots on existing time entries.
func (s *ProjectService) UpdateProject(ctx context.Context, ownerID, projectID string, req domain.UpdateProjectRequest) (*domain.Project, error) {
	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrNameRequired
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		fields["status"] = *req.Status
	}
	if req.ClientID != nil {
		fields["clientId"] = *req.ClientID
	}

	p, err := s.projects.Update(ctx, ownerID, projectID, fields)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, activity.TypeProject, activity.ActionUpdated, fmt.Sprintf("Updated project %q", p.Name))
	s.notify(ctx, ownerID, "project", p.ID, activity.ActionUpdated)
	return p, nil
}

// DeleteProject removes all tasks and time entries concurrently and then the
// project itself. If any child delete fails the project document is kept and
// the error is returned; children already removed stay removed.
func (s *ProjectService) DeleteProject(ctx context.Context, ownerID, projectID string) error {
	p, err := s.projects.Get(ctx, ownerID, projectID)
	if err != nil {
		return err
	}

	tasks, err := s.tasks.List(ctx, ownerID, projectID)
	if err != nil {
		return err
	}
	entries, err := s.entries.List(ctx, ownerID, projectID)
	if err != nil {
		return err
	}

	// every child delete is attempted even after one fails
	var g errgroup.Group
	g.SetLimit(deleteParallelism)
	for _, t := range tasks {
		g.Go(func() error {
			return s.tasks.Delete(ctx, ownerID, projectID, t.ID)
		})
	}
	for _, e := range entries {
		g.Go(func() error {
			return s.entries.Delete(ctx, ownerID, projectID, e.ID)
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error(ctx, "project child cleanup failed", "project", projectID, "error", err)
		return fmt.Errorf("delete project children: %w", err)
	}

	if err := s.projects.Delete(ctx, ownerID, projectID); err != nil {
		return err
	}

	s.activity.Record(ctx, ownerID, activity.TypeProject, activity.ActionDeleted, fmt.Sprintf("Deleted project %q", p.Name))
	s.notify(ctx, ownerID, "project", projectID, activity.ActionDeleted)
	return nil
}
