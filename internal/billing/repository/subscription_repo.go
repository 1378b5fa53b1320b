package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tallyhq/tally-backend/internal/billing/domain"
	"github.com/tallyhq/tally-backend/internal/docstore"
)

type SubscriptionRepository struct {
	store docstore.Store
	Now   func() time.Time
}

func NewSubscriptionRepository(store docstore.Store) *SubscriptionRepository {
	return &SubscriptionRepository{
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func subscriptionPath(ownerID string) string {
	return docstore.Path("users", ownerID, "membership", "subscription")
}

func (r *SubscriptionRepository) Get(ctx context.Context, ownerID string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := r.store.Get(ctx, subscriptionPath(ownerID), &s)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &s, nil
}

// Put overwrites the subscription document.
func (r *SubscriptionRepository) Put(ctx context.Context, ownerID string, s *domain.Subscription) error {
	s.UpdatedAt = r.Now()
	if err := r.store.Set(ctx, subscriptionPath(ownerID), s); err != nil {
		return fmt.Errorf("put subscription: %w", err)
	}
	return nil
}

// StatusChange is a status transition reported by the provider. Plan and
// EndedAt are written only when set.
type StatusChange struct {
	SubscriptionID string
	CustomerID     string
	Status         string
	Plan           string
	EndedAt        *time.Time
}

// SetStatus applies ch to the subscription document. Provider events arrive in
// any order, so a missing document is created from ch instead of failing.
func (r *SubscriptionRepository) SetStatus(ctx context.Context, ownerID string, ch StatusChange) error {
	fields := map[string]any{
		"status":    ch.Status,
		"updatedAt": r.Now(),
	}
	if ch.Plan != "" {
		fields["plan"] = ch.Plan
	}
	if ch.EndedAt != nil {
		fields["endedAt"] = *ch.EndedAt
	}
	err := r.store.Merge(ctx, subscriptionPath(ownerID), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return r.Put(ctx, ownerID, &domain.Subscription{
			SubscriptionID: ch.SubscriptionID,
			CustomerID:     ch.CustomerID,
			Plan:           ch.Plan,
			Status:         ch.Status,
			EndedAt:        ch.EndedAt,
		})
	}
	if err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	return nil
}

type BillingInvoiceRepository struct {
	store docstore.Store
	Now   func() time.Time
}

func NewBillingInvoiceRepository(store docstore.Store) *BillingInvoiceRepository {
	return &BillingInvoiceRepository{
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Put overwrites users/{uid}/billingInvoices/{inv.ID}.
func (r *BillingInvoiceRepository) Put(ctx context.Context, ownerID string, inv *domain.BillingInvoice) error {
	inv.UpdatedAt = r.Now()
	if err := r.store.Set(ctx, docstore.Path("users", ownerID, "billingInvoices", inv.ID), inv); err != nil {
		return fmt.Errorf("put billing invoice: %w", err)
	}
	return nil
}

// List returns the user's billing invoices, newest paid first.
func (r *BillingInvoiceRepository) List(ctx context.Context, ownerID string) ([]domain.BillingInvoice, error) {
	docs, err := r.store.Query(ctx, docstore.Path("users", ownerID, "billingInvoices"), docstore.Query{
		OrderBy: "paidAt",
		Dir:     docstore.Desc,
	})
	if err != nil {
		return nil, fmt.Errorf("list billing invoices: %w", err)
	}
	return docstore.DecodeAll[domain.BillingInvoice](docs)
}
