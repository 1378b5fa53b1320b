package service

import (
	"context"
	"errors"
	"fmt"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/projects/domain"
)

type MigrationResult struct {
	Moved   int `json:"moved"`
	Skipped int `json:"skipped"`
}

// MigrateLegacyTimeEntries moves entries from users/{uid}/timeEntries under
// their project. Entries with no project, or whose project is gone, are left
// in place and logged.
func (s *ProjectService) MigrateLegacyTimeEntries(ctx context.Context, ownerID string) (MigrationResult, error) {
	var res MigrationResult

	legacy, err := s.entries.ListLegacy(ctx, ownerID)
	if err != nil {
		return res, err
	}

	names := map[string]string{}
	for i := range legacy {
		e := &legacy[i]
		if e.ProjectID == "" {
			s.log.Warn(ctx, "legacy time entry has no project", "owner", ownerID, "entry", e.ID)
			res.Skipped++
			continue
		}

		name, ok := names[e.ProjectID]
		if !ok {
			p, err := s.projects.Get(ctx, ownerID, e.ProjectID)
			if errors.Is(err, domain.ErrProjectNotFound) {
				s.log.Warn(ctx, "legacy time entry references missing project",
					"owner", ownerID, "entry", e.ID, "project", e.ProjectID)
				res.Skipped++
				continue
			}
			if err != nil {
				return res, err
			}
			name = p.Name
			names[e.ProjectID] = name
		}
		if e.ProjectName == "" {
			e.ProjectName = name
		}
		if e.EndTime != nil && e.Duration == 0 {
			e.Duration = durationSeconds(e.StartTime, *e.EndTime)
		}

		if err := s.entries.Relocate(ctx, ownerID, e); err != nil {
			return res, err
		}
		res.Moved++
	}

	if res.Moved > 0 {
		s.activity.Record(ctx, ownerID, activity.TypeSystem, activity.ActionMigration,
			fmt.Sprintf("Migrated %d time entries", res.Moved))
		s.log.Info(ctx, "legacy time entries migrated", "owner", ownerID, "moved", res.Moved, "skipped", res.Skipped)
	}
	return res, nil
}
