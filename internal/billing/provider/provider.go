// Package provider wraps the payment provider API behind plain Go types so the
// rest of the service never handles provider SDK structs directly.
package provider

import (
	"errors"
	"time"
)

// ErrNotConfigured is returned when no provider secret key is set.
var ErrNotConfigured = errors.New("payment provider not configured")

type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

type Session struct {
	ID  string
	URL string
}

// SubscriptionInfo is the provider's view of one subscription.
type SubscriptionInfo struct {
	ID                 string
	CustomerID         string
	Status             string
	Plan               string
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	PaymentMethod      string
}

// PaymentRequest charges a one-off amount in the currency's minor unit.
type PaymentRequest struct {
	AmountCents int64
	Currency    string
	Description string
	Metadata    map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
}

type PaymentLink struct {
	ID  string
	URL string
}
