package service

import (
	"context"
	"strings"

	"github.com/tallyhq/tally-backend/internal/users/domain"
)

// Repository is the persistence the user service needs.
type Repository interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	Ensure(ctx context.Context, req *domain.SyncUserRequest) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, uid string) error
	SetPlan(ctx context.Context, uid string, plan domain.Plan) error
	SetStripeCustomerID(ctx context.Context, uid, customerID string) error
	ListIDs(ctx context.Context) ([]string, error)
}

type UserService struct {
	repo Repository
}

func NewUserService(repo Repository) *UserService {
	return &UserService{repo: repo}
}

// Get retrieves a user by Firebase UID
func (s *UserService) Get(ctx context.Context, uid string) (*domain.User, error) {
	return s.repo.GetByFirebaseUID(ctx, uid)
}

// GetByCustomerID resolves a Stripe customer to its user.
func (s *UserService) GetByCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.GetByStripeCustomerID(ctx, customerID)
}

// Sync creates the user on first sign-in and refreshes profile data on later
// ones. The email falls back to a placeholder when the token has none.
func (s *UserService) Sync(ctx context.Context, req *domain.SyncUserRequest) (*domain.User, error) {
	if req.Email == "" {
		req.Email = req.FirebaseUID + "@firebase.local"
	}
	return s.repo.Ensure(ctx, req)
}

// UpdateProfile updates display fields that were provided.
func (s *UserService) UpdateProfile(ctx context.Context, uid string, req *domain.UpdateUserRequest) (*domain.User, error) {
	user, err := s.repo.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		user.DisplayName = req.DisplayName
	}
	if req.PhotoURL != nil {
		user.PhotoURL = req.PhotoURL
	}
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RecordLogin updates the last login timestamp
func (s *UserService) RecordLogin(ctx context.Context, uid string) error {
	return s.repo.UpdateLastLogin(ctx, uid)
}

func (s *UserService) SetPlan(ctx context.Context, uid string, plan domain.Plan) error {
	return s.repo.SetPlan(ctx, uid, plan)
}

func (s *UserService) SetCustomerID(ctx context.Context, uid, customerID string) error {
	return s.repo.SetStripeCustomerID(ctx, uid, customerID)
}

func (s *UserService) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDs(ctx)
}
