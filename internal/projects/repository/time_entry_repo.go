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

type TimeEntryRepository struct {
	store docstore.Store
	Now   func() time.Time
}

func NewTimeEntryRepository(store docstore.Store) *TimeEntryRepository {
	return &TimeEntryRepository{
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func entriesPath(ownerID, projectID string) string {
	return docstore.Path("users", ownerID, "projects", projectID, "timeEntries")
}

func entryPath(ownerID, projectID, entryID string) string {
	return docstore.Path("users", ownerID, "projects", projectID, "timeEntries", entryID)
}

// legacyEntriesPath is where entries lived before they were nested under
// projects.
func legacyEntriesPath(ownerID string) string {
	return docstore.Path("users", ownerID, "timeEntries")
}

func (r *TimeEntryRepository) Create(ctx context.Context, ownerID string, e *domain.TimeEntry) error {
	if e.ProjectID == "" {
		return domain.ErrProjectNotFound
	}
	now := r.Now()
	e.ID = uuid.New().String()
	e.OwnerID = ownerID
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := r.store.Set(ctx, entryPath(ownerID, e.ProjectID, e.ID), e); err != nil {
		return fmt.Errorf("create time entry: %w", err)
	}
	return nil
}

func (r *TimeEntryRepository) Get(ctx context.Context, ownerID, projectID, entryID string) (*domain.TimeEntry, error) {
	var e domain.TimeEntry
	err := r.store.Get(ctx, entryPath(ownerID, projectID, entryID), &e)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrTimeEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get time entry: %w", err)
	}
	return &e, nil
}

// List returns a project's entries, newest start first.
func (r *TimeEntryRepository) List(ctx context.Context, ownerID, projectID string) ([]domain.TimeEntry, error) {
	docs, err := r.store.Query(ctx, entriesPath(ownerID, projectID), docstore.Query{
		OrderBy: "startTime",
		Dir:     docstore.Desc,
	})
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	return docstore.DecodeAll[domain.TimeEntry](docs)
}

func (r *TimeEntryRepository) Update(ctx context.Context, ownerID, projectID, entryID string, fields map[string]any) (*domain.TimeEntry, error) {
	fields["updatedAt"] = r.Now()
	err := r.store.Merge(ctx, entryPath(ownerID, projectID, entryID), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrTimeEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update time entry: %w", err)
	}
	return r.Get(ctx, ownerID, projectID, entryID)
}

func (r *TimeEntryRepository) Delete(ctx context.Context, ownerID, projectID, entryID string) error {
	if err := r.store.Delete(ctx, entryPath(ownerID, projectID, entryID)); err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	return nil
}

// ListLegacy returns entries still stored in the flat users/{uid}/timeEntries
// collection.
func (r *TimeEntryRepository) ListLegacy(ctx context.Context, ownerID string) ([]domain.TimeEntry, error) {
	docs, err := r.store.Query(ctx, legacyEntriesPath(ownerID), docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list legacy time entries: %w", err)
	}
	out := make([]domain.TimeEntry, 0, len(docs))
	for _, d := range docs {
		var e domain.TimeEntry
		if err := d.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode legacy time entry %s: %w", d.ID(), err)
		}
		if e.ID == "" {
			e.ID = d.ID()
		}
		out = append(out, e)
	}
	return out, nil
}

// Relocate writes a legacy entry under its project, keeping its id, and then
// removes the legacy copy. Running it twice for the same entry is harmless.
func (r *TimeEntryRepository) Relocate(ctx context.Context, ownerID string, e *domain.TimeEntry) error {
	e.OwnerID = ownerID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.Now()
	}
	e.UpdatedAt = r.Now()
	if err := r.store.Set(ctx, entryPath(ownerID, e.ProjectID, e.ID), e); err != nil {
		return fmt.Errorf("relocate time entry: %w", err)
	}
	if err := r.store.Delete(ctx, docstore.Path(legacyEntriesPath(ownerID), e.ID)); err != nil {
		return fmt.Errorf("remove legacy time entry: %w", err)
	}
	return nil
}
