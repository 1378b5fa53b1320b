package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNoCustomer           = errors.New("no billing customer for user")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUnknownPlan          = errors.New("unknown or unpriced plan")
)

// Provider subscription statuses written by the reconciler.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"

	statusIncompleteExpired = "incomplete_expired"
)

// IsTerminalStatus reports whether a subscription in this status can no
// longer grant a plan.
func IsTerminalStatus(status string) bool {
	return status == StatusCanceled || status == statusIncompleteExpired
}

// Subscription mirrors the user's provider subscription at
// users/{uid}/membership/subscription.
type Subscription struct {
	SubscriptionID     string     `json:"subscriptionId" firestore:"subscriptionId"`
	CustomerID         string     `json:"customerId" firestore:"customerId"`
	Plan               string     `json:"plan" firestore:"plan"`
	Status             string     `json:"status" firestore:"status"`
	PriceID            string     `json:"priceId,omitempty" firestore:"priceId"`
	CurrentPeriodStart time.Time  `json:"currentPeriodStart" firestore:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time  `json:"currentPeriodEnd" firestore:"currentPeriodEnd"`
	PaymentMethod      string     `json:"paymentMethod,omitempty" firestore:"paymentMethod"`
	EndedAt            *time.Time `json:"endedAt,omitempty" firestore:"endedAt,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// BillingInvoice is a paid subscription invoice of the user themself, stored
// at users/{uid}/billingInvoices/{providerInvoiceId}.
type BillingInvoice struct {
	ID             string    `json:"id" firestore:"id"`
	Number         string    `json:"number" firestore:"number"`
	CustomerID     string    `json:"customerId" firestore:"customerId"`
	SubscriptionID string    `json:"subscriptionId,omitempty" firestore:"subscriptionId"`
	AmountPaid     int64     `json:"amountPaid" firestore:"amountPaid"` // minor units
	Currency       string    `json:"currency" firestore:"currency"`
	HostedURL      string    `json:"hostedUrl,omitempty" firestore:"hostedUrl"`
	PDFURL         string    `json:"pdfUrl,omitempty" firestore:"pdfUrl"`
	Status         string    `json:"status" firestore:"status"`
	PeriodStart    time.Time `json:"periodStart" firestore:"periodStart"`
	PeriodEnd      time.Time `json:"periodEnd" firestore:"periodEnd"`
	PaidAt         time.Time `json:"paidAt" firestore:"paidAt"`
	UpdatedAt      time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// IsSubscriptionReason reports whether a provider billing reason belongs to a
// subscription (subscription_create, subscription_cycle, subscription_update...).
func IsSubscriptionReason(reason string) bool {
	return strings.HasPrefix(reason, "subscription")
}
