package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/projects/domain"
)

// snapshotNames resolves the project and optional task names copied onto an
// entry. A task id that does not belong to the project is rejected.
func (s *ProjectService) snapshotNames(ctx context.Context, ownerID, projectID, taskID string) (string, string, error) {
	p, err := s.projects.Get(ctx, ownerID, projectID)
	if err != nil {
		return "", "", err
	}
	if taskID == "" {
		return p.Name, "", nil
	}
	t, err := s.tasks.Get(ctx, ownerID, projectID, taskID)
	if err != nil {
		return "", "", err
	}
	return p.Name, t.Name, nil
}

// StartTimer opens a running entry starting now.
func (s *ProjectService) StartTimer(ctx context.Context, ownerID string, req domain.StartTimerRequest) (*domain.TimeEntry, error) {
	if req.ProjectID == "" {
		return nil, domain.ErrProjectNotFound
	}
	projectName, taskName, err := s.snapshotNames(ctx, ownerID, req.ProjectID, req.TaskID)
	if err != nil {
		return nil, err
	}

	e := &domain.TimeEntry{
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Description: strings.TrimSpace(req.Description),
		StartTime:   s.Now(),
		ProjectName: projectName,
		TaskName:    taskName,
	}
	if err := s.entries.Create(ctx, ownerID, e); err != nil {
		return nil, err
	}
	if err := s.projects.Touch(ctx, ownerID, req.ProjectID); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, activity.TypeTime, activity.ActionStarted, fmt.Sprintf("Started timer on %q", projectName))
	s.notify(ctx, ownerID, "time", e.ID, activity.ActionStarted)
	return e, nil
}

// StopTimer closes a running entry at now and stores its duration.
func (s *ProjectService) StopTimer(ctx context.Context, ownerID, projectID, entryID string) (*domain.TimeEntry, error) {
	e, err := s.entries.Get(ctx, ownerID, projectID, entryID)
	if err != nil {
		return nil, err
	}
	if !e.Running() {
		return nil, domain.ErrTimerNotRunning
	}

	end := s.Now()
	if end.Before(e.StartTime) {
		end = e.StartTime
	}
	e, err = s.entries.Update(ctx, ownerID, projectID, entryID, map[string]any{
		"endTime":  end,
		"duration": durationSeconds(e.StartTime, end),
	})
	if err != nil {
		return nil, err
	}
	if err := s.projects.Touch(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, activity.TypeTime, activity.ActionStopped,
		fmt.Sprintf("Stopped timer on %q after %s", e.ProjectName, time.Duration(e.Duration)*time.Second))
	s.notify(ctx, ownerID, "time", e.ID, activity.ActionStopped)
	return e, nil
}

// CreateTimeEntry records a completed block of work.
func (s *ProjectService) CreateTimeEntry(ctx context.Context, ownerID string, req domain.CreateTimeEntryRequest) (*domain.TimeEntry, error) {
	if req.ProjectID == "" {
		return nil, domain.ErrProjectNotFound
	}
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	if start.IsZero() || !end.After(start) {
		return nil, domain.ErrInvalidTimeRange
	}
	projectName, taskName, err := s.snapshotNames(ctx, ownerID, req.ProjectID, req.TaskID)
	if err != nil {
		return nil, err
	}

	e := &domain.TimeEntry{
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Description: strings.TrimSpace(req.Description),
		StartTime:   start,
		EndTime:     &end,
		Duration:    durationSeconds(start, end),
		ProjectName: projectName,
		TaskName:    taskName,
	}
	if err := s.entries.Create(ctx, ownerID, e); err != nil {
		return nil, err
	}
	if err := s.projects.Touch(ctx, ownerID, req.ProjectID); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, activity.TypeTime, activity.ActionCreated, fmt.Sprintf("Logged time on %q", projectName))
	s.notify(ctx, ownerID, "time", e.ID, activity.ActionCreated)
	return e, nil
}

// UpdateTimeEntry applies the non-nil fields of req and recomputes the
// duration of a finished entry.
func (s *ProjectService) UpdateTimeEntry(ctx context.Context, ownerID, projectID, entryID string, req domain.UpdateTimeEntryRequest) (*domain.TimeEntry, error) {
	e, err := s.entries.Get(ctx, ownerID, projectID, entryID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.TaskID != nil && *req.TaskID != e.TaskID {
		_, taskName, err := s.snapshotNames(ctx, ownerID, projectID, *req.TaskID)
		if err != nil {
			return nil, err
		}
		fields["taskId"] = *req.TaskID
		fields["taskName"] = taskName
	}

	start, end := e.StartTime, e.EndTime
	if req.StartTime != nil {
		start = req.StartTime.UTC()
		fields["startTime"] = start
	}
	if req.EndTime != nil {
		t := req.EndTime.UTC()
		end = &t
		fields["endTime"] = t
	}
	if end != nil {
		if !end.After(start) {
			return nil, domain.ErrInvalidTimeRange
		}
		fields["duration"] = durationSeconds(start, *end)
	}

	e, err = s.entries.Update(ctx, ownerID, projectID, entryID, fields)
	if err != nil {
		return nil, err
	}
	if err := s.projects.Touch(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ownerID, activity.TypeTime, activity.ActionUpdated, fmt.Sprintf("Updated time entry on %q", e.ProjectName))
	s.notify(ctx, ownerID, "time", e.ID, activity.ActionUpdated)
	return e, nil
}

func (s *ProjectService) DeleteTimeEntry(ctx context.Context, ownerID, projectID, entryID string) error {
	e, err := s.entries.Get(ctx, ownerID, projectID, entryID)
	if err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, ownerID, projectID, entryID); err != nil {
		return err
	}
	if err := s.projects.Touch(ctx, ownerID, projectID); err != nil {
		return err
	}

	s.activity.Record(ctx, ownerID, activity.TypeTime, activity.ActionDeleted, fmt.Sprintf("Deleted time entry on %q", e.ProjectName))
	s.notify(ctx, ownerID, "time", entryID, activity.ActionDeleted)
	return nil
}

func (s *ProjectService) ListTimeEntries(ctx context.Context, ownerID, projectID string) ([]domain.TimeEntry, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.entries.List(ctx, ownerID, projectID)
}

// ListAllTimeEntries walks every project of the owner, newest start first.
func (s *ProjectService) ListAllTimeEntries(ctx context.Context, ownerID string) ([]domain.TimeEntry, error) {
	projects, err := s.projects.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var out []domain.TimeEntry
	for _, p := range projects {
		entries, err := s.entries.List(ctx, ownerID, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func durationSeconds(start, end time.Time) int64 {
	return int64(end.Sub(start) / time.Second)
}
