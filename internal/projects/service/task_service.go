package service

import (
	"context"
	"fmt"
	"strings"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/projects/domain"
)

func (s *ProjectService) ListTasks(ctx context.Context, ownerID, projectID string) ([]domain.Task, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.tasks.List(ctx, ownerID, projectID)
}

func (s *ProjectService) CreateTask(ctx context.Context, ownerID, projectID string, req domain.CreateTaskRequest) (*domain.Task, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}
	status := req.Status
	if status == "" {
		status = domain.TaskTodo
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	t := &domain.Task{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		DueDate:     req.DueDate,
	}
	if err := s.tasks.Create(ctx, ownerID, projectID, t); err != nil {
		return nil, err
	}
	if err := s.projects.Touch(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, activity.TypeTask, activity.ActionCreated, fmt.Sprintf("Created task %q", t.Name))
	s.notify(ctx, ownerID, "task", t.ID, activity.ActionCreated)
	return t, nil
}

// UpdateTask applies the non-nil fields of req. Moving a task into done from
// any other status records a completed entry in addition to the updated one.
func (s *ProjectService) UpdateTask(ctx context.Context, ownerID, projectID, taskID string, req domain.UpdateTaskRequest) (*domain.Task, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	before, err := s.tasks.Get(ctx, ownerID, projectID, taskID)
	if err != nil {
		return nil, err
	}

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
	if req.DueDate != nil {
		fields["dueDate"] = req.DueDate.UTC()
	}

	t, err := s.tasks.Update(ctx, ownerID, projectID, taskID, fields)
	if err != nil {
		return nil, err
	}
	if err := s.projects.Touch(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	if before.Status != domain.TaskDone && t.Status == domain.TaskDone {
		s.activity.Record(ctx, ownerID, activity.TypeTask, activity.ActionCompleted, fmt.Sprintf("Completed task %q", t.Name))
	}
	s.activity.Record(ctx, ownerID, activity.TypeTask, activity.ActionUpdated, fmt.Sprintf("Updated task %q", t.Name))
	s.notify(ctx, ownerID, "task", t.ID, activity.ActionUpdated)
	return t, nil
}

func (s *ProjectService) DeleteTask(ctx context.Context, ownerID, projectID, taskID string) error {
	t, err := s.tasks.Get(ctx, ownerID, projectID, taskID)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, ownerID, projectID, taskID); err != nil {
		return err
	}
	if err := s.projects.Touch(ctx, ownerID, projectID); err != nil {
		return err
	}

	s.activity.Record(ctx, ownerID, activity.TypeTask, activity.ActionDeleted, fmt.Sprintf("Deleted task %q", t.Name))
	s.notify(ctx, ownerID, "task", taskID, activity.ActionDeleted)
	return nil
}

// ApproveTask stamps approvedAt. Approving an already approved task keeps the
// original instant and records nothing.
func (s *ProjectService) ApproveTask(ctx context.Context, ownerID, projectID, taskID string) (*domain.Task, error) {
	t, err := s.tasks.Get(ctx, ownerID, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if t.ApprovedAt != nil {
		return t, nil
	}

	t, err = s.tasks.Update(ctx, ownerID, projectID, taskID, map[string]any{"approvedAt": s.Now()})
	if err != nil {
		return nil, err
	}
	if err := s.projects.Touch(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, activity.TypeTask, activity.ActionApproved, fmt.Sprintf("Task %q approved", t.Name))
	s.notify(ctx, ownerID, "task", t.ID, activity.ActionApproved)
	return t, nil
}
