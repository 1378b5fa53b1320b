package service

import (
	"context"
	"fmt"
	"strings"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/changes"
	"github.com/tallyhq/tally-backend/internal/clients/domain"
	"github.com/tallyhq/tally-backend/internal/clients/repository"
)

type ActivityRecorder interface {
	Record(ctx context.Context, ownerID string, typ activity.Type, action activity.Action, description string)
}

// ClientService handles client records and their portal settings.
type ClientService struct {
	repo     *repository.ClientRepository
	activity ActivityRecorder
	changes  changes.Publisher
}

func NewClientService(repo *repository.ClientRepository, rec ActivityRecorder, pub changes.Publisher) *ClientService {
	return &ClientService{repo: repo, activity: rec, changes: pub}
}

func (s *ClientService) record(ctx context.Context, ownerID, clientID string, action activity.Action, desc string) {
	s.activity.Record(ctx, ownerID, activity.TypeClient, action, desc)
	s.changes.Publish(ctx, ownerID, changes.Notice{Type: "client", ID: clientID, Action: string(action)})
}

func (s *ClientService) Create(ctx context.Context, ownerID string, req domain.CreateClientRequest) (*domain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}
	portal := domain.DefaultPortalSettings()
	if req.Portal != nil {
		portal = *req.Portal
	}

	c := &domain.Client{
		Name:    name,
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Portal:  portal,
	}
	if err := s.repo.Create(ctx, ownerID, c); err != nil {
		return nil, err
	}
	s.record(ctx, ownerID, c.ID, activity.ActionCreated, fmt.Sprintf("Added client %q", c.Name))
	return c, nil
}

func (s *ClientService) List(ctx context.Context, ownerID string) ([]domain.Client, error) {
	return s.repo.List(ctx, ownerID)
}

func (s *ClientService) Get(ctx context.Context, ownerID, clientID string) (*domain.Client, error) {
	return s.repo.Get(ctx, ownerID, clientID)
}

func (s *ClientService) Update(ctx context.Context, ownerID, clientID string, req domain.UpdateClientRequest) (*domain.Client, error) {
	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrNameRequired
		}
		fields["name"] = name
	}
	if req.Email != nil {
		fields["email"] = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		fields["address"] = strings.TrimSpace(*req.Address)
	}

	c, err := s.repo.Update(ctx, ownerID, clientID, fields)
	if err != nil {
		return nil, err
	}
	s.record(ctx, ownerID, c.ID, activity.ActionUpdated, fmt.Sprintf("Updated client %q", c.Name))
	return c, nil
}

// UpdatePortalSettings replaces the client's portal settings as a whole.
func (s *ClientService) UpdatePortalSettings(ctx context.Context, ownerID, clientID string, settings domain.PortalSettings) (*domain.Client, error) {
	c, err := s.repo.Update(ctx, ownerID, clientID, map[string]any{"portal": settings})
	if err != nil {
		return nil, err
	}
	state := "disabled"
	if settings.Enabled {
		state = "enabled"
	}
	s.record(ctx, ownerID, c.ID, activity.ActionUpdated, fmt.Sprintf("Portal %s for %q", state, c.Name))
	return c, nil
}

// Delete removes the client. Projects and invoices keep their clientId.
func (s *ClientService) Delete(ctx context.Context, ownerID, clientID string) error {
	c, err := s.repo.Get(ctx, ownerID, clientID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, clientID); err != nil {
		return err
	}
	s.record(ctx, ownerID, clientID, activity.ActionDeleted, fmt.Sprintf("Removed client %q", c.Name))
	return nil
}
