package service

import (
	"context"

	"github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/activity/repository"
	"github.com/tallyhq/tally-backend/internal/logging"
)

// ActivityService writes the audit trail on behalf of the other services.
type ActivityService struct {
	repo *repository.ActivityRepository
	log  logging.Logger
}

func NewActivityService(repo *repository.ActivityRepository, log logging.Logger) *ActivityService {
	return &ActivityService{repo: repo, log: log.With("component", "activity")}
}

// Record appends an entry. A failed append is logged and swallowed so that the
// mutation that triggered it still succeeds.
func (s *ActivityService) Record(ctx context.Context, ownerID string, typ domain.Type, action domain.Action, description string) {
	if _, err := s.repo.Append(ctx, ownerID, typ, action, description); err != nil {
		s.log.Error(ctx, "activity append failed",
			"owner", ownerID, "type", typ, "action", action, "error", err)
	}
}

// Recent lists the newest entries. limit is clamped to [1, MaxListLimit];
// zero or negative means DefaultListLimit.
func (s *ActivityService) Recent(ctx context.Context, ownerID string, limit int) ([]domain.Entry, error) {
	switch {
	case limit <= 0:
		limit = domain.DefaultListLimit
	case limit > domain.MaxListLimit:
		limit = domain.MaxListLimit
	}
	return s.repo.List(ctx, ownerID, limit)
}
