package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// PlanMetadataKey is the price metadata key naming the plan a price grants.
const PlanMetadataKey = "plan"

// Stripe talks to the Stripe API through a per-instance client.
type Stripe struct {
	api *client.API
	// priceToPlan resolves plans for prices that carry no plan metadata.
	priceToPlan map[string]string
	defaultPlan string
}

// NewStripe builds a client for secretKey. priceIDs maps plan -> price id.
func NewStripe(secretKey string, priceIDs map[string]string, defaultPlan string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)

	reverse := make(map[string]string, len(priceIDs))
	for plan, price := range priceIDs {
		if price != "" {
			reverse[price] = plan
		}
	}
	return &Stripe{api: api, priceToPlan: reverse, defaultPlan: defaultPlan}
}

func (s *Stripe) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerID),
		ClientReferenceID: stripe.String(req.UserID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"userId": req.UserID},
		},
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe portal session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("default_payment_method")

	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return s.subscriptionInfo(sub), nil
}

func (s *Stripe) subscriptionInfo(sub *stripe.Subscription) *SubscriptionInfo {
	info := &SubscriptionInfo{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: unix(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unix(sub.CurrentPeriodEnd),
		Plan:               s.defaultPlan,
	}
	if sub.Customer != nil {
		info.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		info.PriceID = price.ID
		info.Plan = s.planForPrice(price)
	}
	if pm := sub.DefaultPaymentMethod; pm != nil {
		info.PaymentMethod = string(pm.Type)
		if pm.Card != nil {
			info.PaymentMethod = fmt.Sprintf("%s ****%s", pm.Card.Brand, pm.Card.Last4)
		}
	}
	return info
}

// planForPrice prefers price metadata, then the configured price ids.
func (s *Stripe) planForPrice(price *stripe.Price) string {
	if plan := price.Metadata[PlanMetadataKey]; plan != "" {
		return plan
	}
	if plan, ok := s.priceToPlan[price.ID]; ok {
		return plan
	}
	return s.defaultPlan
}

func (s *Stripe) CreatePaymentIntent(ctx context.Context, req PaymentRequest) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}
	return &PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CreatePaymentLink creates a one-off price for the amount and a hosted link
// for it. Metadata is copied onto the resulting payment intent.
func (s *Stripe) CreatePaymentLink(ctx context.Context, req PaymentRequest) (*PaymentLink, error) {
	priceParams := &stripe.PriceParams{
		Currency:   stripe.String(req.Currency),
		UnitAmount: stripe.Int64(req.AmountCents),
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(req.Description),
		},
	}
	priceParams.Context = ctx

	price, err := s.api.Prices.New(priceParams)
	if err != nil {
		return nil, fmt.Errorf("stripe price: %w", err)
	}

	params := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{Price: stripe.String(price.ID), Quantity: stripe.Int64(1)},
		},
		PaymentIntentData: &stripe.PaymentLinkPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	link, err := s.api.PaymentLinks.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment link: %w", err)
	}
	return &PaymentLink{ID: link.ID, URL: link.URL}, nil
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
