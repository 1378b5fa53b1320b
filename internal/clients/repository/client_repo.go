package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally-backend/internal/clients/domain"
	"github.com/tallyhq/tally-backend/internal/docstore"
)

type ClientRepository struct {
	store docstore.Store
	Now   func() time.Time
}

func NewClientRepository(store docstore.Store) *ClientRepository {
	return &ClientRepository{
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func clientPath(ownerID, clientID string) string {
	return docstore.Path("users", ownerID, "clients", clientID)
}

func (r *ClientRepository) Create(ctx context.Context, ownerID string, c *domain.Client) error {
	now := r.Now()
	c.ID = uuid.New().String()
	c.OwnerID = ownerID
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := r.store.Set(ctx, clientPath(ownerID, c.ID), c); err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (r *ClientRepository) Get(ctx context.Context, ownerID, clientID string) (*domain.Client, error) {
	var c domain.Client
	err := r.store.Get(ctx, clientPath(ownerID, clientID), &c)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

// List returns the owner's clients ordered by name.
func (r *ClientRepository) List(ctx context.Context, ownerID string) ([]domain.Client, error) {
	docs, err := r.store.Query(ctx, docstore.Path("users", ownerID, "clients"), docstore.Query{OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return docstore.DecodeAll[domain.Client](docs)
}

func (r *ClientRepository) Update(ctx context.Context, ownerID, clientID string, fields map[string]any) (*domain.Client, error) {
	fields["updatedAt"] = r.Now()
	err := r.store.Merge(ctx, clientPath(ownerID, clientID), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return r.Get(ctx, ownerID, clientID)
}

func (r *ClientRepository) Delete(ctx context.Context, ownerID, clientID string) error {
	if err := r.store.Delete(ctx, clientPath(ownerID, clientID)); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}
