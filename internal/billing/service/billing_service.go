package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tallyhq/tally-backend/internal/billing/domain"
	"github.com/tallyhq/tally-backend/internal/billing/provider"
	"github.com/tallyhq/tally-backend/internal/billing/repository"
	"github.com/tallyhq/tally-backend/internal/logging"
	users "github.com/tallyhq/tally-backend/internal/users/domain"
)

// Provider is the part of the payment provider used for self-service billing.
type Provider interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, req provider.CheckoutRequest) (*provider.Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*provider.Session, error)
}

type UserStore interface {
	Get(ctx context.Context, uid string) (*users.User, error)
	SetCustomerID(ctx context.Context, uid, customerID string) error
}

type BillingService struct {
	provider    Provider
	users       UserStore
	subs        *repository.SubscriptionRepository
	invoices    *repository.BillingInvoiceRepository
	priceIDs    map[string]string
	frontendURL string
	log         logging.Logger
}

// NewBillingService wires self-service billing. prov may be nil when no
// provider key is configured.
func NewBillingService(
	prov Provider,
	userStore UserStore,
	subs *repository.SubscriptionRepository,
	invoices *repository.BillingInvoiceRepository,
	priceIDs map[string]string,
	frontendURL string,
	log logging.Logger,
) *BillingService {
	return &BillingService{
		provider:    prov,
		users:       userStore,
		subs:        subs,
		invoices:    invoices,
		priceIDs:    priceIDs,
		frontendURL: frontendURL,
		log:         log.With("component", "billing"),
	}
}

func (s *BillingService) billingPageURL(query string) string {
	u := s.frontendURL + "/settings/billing"
	if query != "" {
		u += "?" + query
	}
	return u
}

// Checkout starts a subscription checkout for plan, creating the provider
// customer on first use.
func (s *BillingService) Checkout(ctx context.Context, uid, plan string) (string, error) {
	if s.provider == nil {
		return "", provider.ErrNotConfigured
	}
	p := users.Plan(plan)
	price := s.priceIDs[plan]
	if !p.Valid() || p == users.PlanFree || price == "" {
		return "", domain.ErrUnknownPlan
	}

	user, err := s.users.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	customerID := user.CustomerID()
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, user.Email, uid)
		if err != nil {
			return "", err
		}
		if err := s.users.SetCustomerID(ctx, uid, customerID); err != nil {
			return "", fmt.Errorf("store customer id: %w", err)
		}
		s.log.Info(ctx, "billing customer created", "user", uid, "customer", customerID)
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, provider.CheckoutRequest{
		CustomerID: customerID,
		PriceID:    price,
		UserID:     uid,
		SuccessURL: s.billingPageURL("checkout=success"),
		CancelURL:  s.billingPageURL("checkout=cancel"),
	})
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// PortalSession opens the provider's self-service billing portal.
func (s *BillingService) PortalSession(ctx context.Context, uid string) (string, error) {
	if s.provider == nil {
		return "", provider.ErrNotConfigured
	}
	user, err := s.users.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	if user.CustomerID() == "" {
		return "", domain.ErrNoCustomer
	}
	sess, err := s.provider.CreatePortalSession(ctx, user.CustomerID(), s.billingPageURL(""))
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// Overview is the user's plan together with the mirrored subscription, if any.
type Overview struct {
	Plan         users.Plan           `json:"plan"`
	Subscription *domain.Subscription `json:"subscription"`
}

func (s *BillingService) Subscription(ctx context.Context, uid string) (*Overview, error) {
	user, err := s.users.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := &Overview{Plan: user.Plan}
	sub, err := s.subs.Get(ctx, uid)
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound):
	case err != nil:
		return nil, err
	default:
		out.Subscription = sub
	}
	return out, nil
}

func (s *BillingService) Invoices(ctx context.Context, uid string) ([]domain.BillingInvoice, error) {
	return s.invoices.List(ctx, uid)
}
