package domain

import "errors"

var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrInvoiceNotEditable  = errors.New("only draft invoices can be changed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrNoItems             = errors.New("invoice needs at least one item")
	ErrInvalidItem         = errors.New("item quantity must be positive and unit price non-negative")
	ErrNoRecipient         = errors.New("invoice has no client email")
	ErrNotPayable          = errors.New("invoice is not awaiting payment")
	ErrPaymentsUnavailable = errors.New("payments are not configured")
)
