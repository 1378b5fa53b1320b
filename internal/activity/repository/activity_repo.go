package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/docstore"
)

// ActivityRepository appends to and reads users/{uid}/activity.
type ActivityRepository struct {
	store docstore.Store
	Now   func() time.Time
}

func NewActivityRepository(store docstore.Store) *ActivityRepository {
	return &ActivityRepository{
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Append stores a new entry. ID and Timestamp are always assigned here.
func (r *ActivityRepository) Append(ctx context.Context, ownerID string, typ domain.Type, action domain.Action, description string) (*domain.Entry, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id required")
	}
	e := &domain.Entry{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Timestamp:   r.Now(),
		Type:        typ,
		Action:      action,
		Description: description,
	}
	if err := r.store.Set(ctx, docstore.Path("users", ownerID, "activity", e.ID), e); err != nil {
		return nil, fmt.Errorf("append activity: %w", err)
	}
	return e, nil
}

// List returns the newest entries first.
func (r *ActivityRepository) List(ctx context.Context, ownerID string, limit int) ([]domain.Entry, error) {
	docs, err := r.store.Query(ctx, docstore.Path("users", ownerID, "activity"), docstore.Query{
		OrderBy: "timestamp",
		Dir:     docstore.Desc,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	out := make([]domain.Entry, 0, len(docs))
	for _, d := range docs {
		var e domain.Entry
		if err := d.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode activity %s: %w", d.ID(), err)
		}
		out = append(out, e)
	}
	return out, nil
}
