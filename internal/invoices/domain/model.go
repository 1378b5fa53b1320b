package domain

import (
	"math"
	"time"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// transitions is the one-way status lattice.
var transitions = map[Status][]Status{
	StatusDraft:   {StatusSent},
	StatusSent:    {StatusPaid, StatusOverdue},
	StatusOverdue: {StatusPaid},
}

// CanTransition reports whether an invoice may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Item struct {
	Description string  `json:"description" firestore:"description"`
	Quantity    float64 `json:"quantity" firestore:"quantity"`
	UnitPrice   float64 `json:"unitPrice" firestore:"unitPrice"`
	Total       float64 `json:"total" firestore:"total"`
}

// Invoice is stored at users/{uid}/invoices/{id}.
type Invoice struct {
	ID              string     `json:"id" firestore:"id"`
	OwnerID         string     `json:"ownerId" firestore:"ownerId"`
	ProjectID       string     `json:"projectId,omitempty" firestore:"projectId"`
	ClientID        string     `json:"clientId,omitempty" firestore:"clientId"`
	ClientName      string     `json:"clientName" firestore:"clientName"`
	ClientEmail     string     `json:"clientEmail" firestore:"clientEmail"`
	InvoiceNumber   string     `json:"invoiceNumber" firestore:"invoiceNumber"`
	Year            int        `json:"year" firestore:"year"`
	Items           []Item     `json:"items" firestore:"items"`
	Total           float64    `json:"total" firestore:"total"`
	Currency        string     `json:"currency" firestore:"currency"`
	Status          Status     `json:"status" firestore:"status"`
	Notes           string     `json:"notes,omitempty" firestore:"notes"`
	DueDate         *time.Time `json:"dueDate,omitempty" firestore:"dueDate,omitempty"`
	SentAt          *time.Time `json:"sentAt,omitempty" firestore:"sentAt,omitempty"`
	PaidAt          *time.Time `json:"paidAt,omitempty" firestore:"paidAt,omitempty"`
	PaymentLinkID   string     `json:"paymentLinkId,omitempty" firestore:"paymentLinkId"`
	PaymentLinkURL  string     `json:"paymentLinkUrl,omitempty" firestore:"paymentLinkUrl"`
	PaymentIntentID string     `json:"paymentIntentId,omitempty" firestore:"paymentIntentId"`
	CreatedAt       time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// AmountCents is the total in the currency's minor unit.
func (inv *Invoice) AmountCents() int64 {
	return int64(math.Round(inv.Total * 100))
}

// PriceItems validates items and fills each line total and the invoice total.
// Amounts are rounded to cents.
func PriceItems(items []Item) ([]Item, float64, error) {
	if len(items) == 0 {
		return nil, 0, ErrNoItems
	}
	out := make([]Item, len(items))
	var total float64
	for i, it := range items {
		if !finite(it.Quantity) || !finite(it.UnitPrice) || it.Quantity <= 0 || it.UnitPrice < 0 {
			return nil, 0, ErrInvalidItem
		}
		it.Total = roundCents(it.Quantity * it.UnitPrice)
		total += it.Total
		if !finite(it.Total) || !finite(total) {
			return nil, 0, ErrInvalidItem
		}
		out[i] = it
	}
	return out, roundCents(total), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

type CreateInvoiceRequest struct {
	ProjectID   string     `json:"projectId"`
	ClientID    string     `json:"clientId"`
	ClientName  string     `json:"clientName"`
	ClientEmail string     `json:"clientEmail"`
	Items       []Item     `json:"items"`
	Currency    string     `json:"currency"`
	Notes       string     `json:"notes"`
	DueDate     *time.Time `json:"dueDate"`
}

type UpdateInvoiceRequest struct {
	ProjectID   *string    `json:"projectId"`
	ClientName  *string    `json:"clientName"`
	ClientEmail *string    `json:"clientEmail"`
	Items       []Item     `json:"items"`
	Notes       *string    `json:"notes"`
	DueDate     *time.Time `json:"dueDate"`
}
