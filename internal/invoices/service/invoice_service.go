package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/billing/provider"
	"github.com/tallyhq/tally-backend/internal/changes"
	clients "github.com/tallyhq/tally-backend/internal/clients/domain"
	"github.com/tallyhq/tally-backend/internal/invoices/domain"
	"github.com/tallyhq/tally-backend/internal/invoices/repository"
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/mailer"
)

const defaultCurrency = "usd"

type ActivityRecorder interface {
	Record(ctx context.Context, ownerID string, typ activity.Type, action activity.Action, description string)
}

// ClientLookup resolves billing contact details from a client id.
type ClientLookup interface {
	Get(ctx context.Context, ownerID, clientID string) (*clients.Client, error)
}

// Payments creates provider-side payment objects. A nil Payments disables
// payment intents and links.
type Payments interface {
	CreatePaymentIntent(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentIntent, error)
	CreatePaymentLink(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentLink, error)
}

type InvoiceService struct {
	repo     *repository.InvoiceRepository
	clients  ClientLookup
	payments Payments
	mail     mailer.Mailer
	activity ActivityRecorder
	changes  changes.Publisher
	log      logging.Logger

	Now func() time.Time
}

func NewInvoiceService(
	repo *repository.InvoiceRepository,
	clientLookup ClientLookup,
	payments Payments,
	mail mailer.Mailer,
	rec ActivityRecorder,
	pub changes.Publisher,
	log logging.Logger,
) *InvoiceService {
	return &InvoiceService{
		repo:     repo,
		clients:  clientLookup,
		payments: payments,
		mail:     mail,
		activity: rec,
		changes:  pub,
		log:      log.With("component", "invoices"),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *InvoiceService) record(ctx context.Context, ownerID, invoiceID string, action activity.Action, desc string) {
	s.activity.Record(ctx, ownerID, activity.TypeInvoice, action, desc)
	s.changes.Publish(ctx, ownerID, changes.Notice{Type: "invoice", ID: invoiceID, Action: string(action)})
}

// Create numbers and stores a draft invoice. Contact details missing from req
// are filled from the linked client.
func (s *InvoiceService) Create(ctx context.Context, ownerID string, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	items, total, err := domain.PriceItems(req.Items)
	if err != nil {
		return nil, err
	}

	inv := &domain.Invoice{
		ProjectID:   req.ProjectID,
		ClientID:    req.ClientID,
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		Items:       items,
		Total:       total,
		Currency:    strings.ToLower(strings.TrimSpace(req.Currency)),
		Status:      domain.StatusDraft,
		Notes:       req.Notes,
		DueDate:     req.DueDate,
	}
	if inv.Currency == "" {
		inv.Currency = defaultCurrency
	}
	if req.ClientID != "" {
		c, err := s.clients.Get(ctx, ownerID, req.ClientID)
		if err != nil {
			return nil, err
		}
		if inv.ClientName == "" {
			inv.ClientName = c.Name
		}
		if inv.ClientEmail == "" {
			inv.ClientEmail = c.Email
		}
	}

	inv.Year = s.Now().Year()
	inv.InvoiceNumber, err = s.repo.NextNumber(ctx, ownerID, inv.Year)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, ownerID, inv); err != nil {
		return nil, err
	}

	s.record(ctx, ownerID, inv.ID, activity.ActionCreated, fmt.Sprintf("Created invoice %s", inv.InvoiceNumber))
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, ownerID string) ([]domain.Invoice, error) {
	return s.repo.List(ctx, ownerID)
}

func (s *InvoiceService) Get(ctx context.Context, ownerID, invoiceID string) (*domain.Invoice, error) {
	return s.repo.Get(ctx, ownerID, invoiceID)
}

// ListForClient returns a client's invoices that have left draft.
func (s *InvoiceService) ListForClient(ctx context.Context, ownerID, clientID string) ([]domain.Invoice, error) {
	all, err := s.repo.ListByClient(ctx, ownerID, clientID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, inv := range all {
		if inv.Status != domain.StatusDraft {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Update changes a draft invoice. Replacing items recomputes the total.
func (s *InvoiceService) Update(ctx context.Context, ownerID, invoiceID string, req domain.UpdateInvoiceRequest) (*domain.Invoice, error) {
	inv, err := s.repo.Get(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusDraft {
		return nil, domain.ErrInvoiceNotEditable
	}

	fields := map[string]any{}
	if req.Items != nil {
		items, total, err := domain.PriceItems(req.Items)
		if err != nil {
			return nil, err
		}
		fields["items"] = items
		fields["total"] = total
	}
	if req.ProjectID != nil {
		fields["projectId"] = *req.ProjectID
	}
	if req.ClientName != nil {
		fields["clientName"] = strings.TrimSpace(*req.ClientName)
	}
	if req.ClientEmail != nil {
		fields["clientEmail"] = strings.TrimSpace(*req.ClientEmail)
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.DueDate != nil {
		fields["dueDate"] = req.DueDate.UTC()
	}

	inv, err = s.repo.Update(ctx, ownerID, invoiceID, fields)
	if err != nil {
		return nil, err
	}
	s.record(ctx, ownerID, inv.ID, activity.ActionUpdated, fmt.Sprintf("Updated invoice %s", inv.InvoiceNumber))
	return inv, nil
}

// UpdateStatus moves an invoice along the status lattice. Setting the current
// status again is a no-op.
func (s *InvoiceService) UpdateStatus(ctx context.Context, ownerID, invoiceID string, to domain.Status) (*domain.Invoice, error) {
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	inv, err := s.repo.Get(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == to {
		return inv, nil
	}
	if !domain.CanTransition(inv.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, inv.Status, to)
	}

	inv, err = s.repo.Update(ctx, ownerID, invoiceID, s.statusFields(to))
	if err != nil {
		return nil, err
	}
	action := activity.ActionUpdated
	if to == domain.StatusSent {
		action = activity.ActionSent
	}
	s.record(ctx, ownerID, inv.ID, action, fmt.Sprintf("Invoice %s marked %s", inv.InvoiceNumber, to))
	return inv, nil
}

func (s *InvoiceService) statusFields(to domain.Status) map[string]any {
	fields := map[string]any{"status": to}
	switch to {
	case domain.StatusSent:
		fields["sentAt"] = s.Now()
	case domain.StatusPaid:
		fields["paidAt"] = s.Now()
	}
	return fields
}

// Delete removes a draft invoice. Its number is not reused.
func (s *InvoiceService) Delete(ctx context.Context, ownerID, invoiceID string) error {
	inv, err := s.repo.Get(ctx, ownerID, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status != domain.StatusDraft {
		return domain.ErrInvoiceNotEditable
	}
	if err := s.repo.Delete(ctx, ownerID, invoiceID); err != nil {
		return err
	}
	s.record(ctx, ownerID, invoiceID, activity.ActionDeleted, fmt.Sprintf("Deleted invoice %s", inv.InvoiceNumber))
	return nil
}

// Send emails the invoice to the client and marks it sent. When payments are
// configured a payment link is created first and included in the email.
func (s *InvoiceService) Send(ctx context.Context, ownerID, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.repo.Get(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusDraft && inv.Status != domain.StatusSent {
		return nil, fmt.Errorf("%w: cannot send a %s invoice", domain.ErrInvalidTransition, inv.Status)
	}
	if inv.ClientEmail == "" {
		return nil, domain.ErrNoRecipient
	}

	fields := map[string]any{}
	if s.payments != nil && inv.PaymentLinkURL == "" && inv.Total > 0 {
		link, err := s.payments.CreatePaymentLink(ctx, s.paymentRequest(ownerID, inv))
		if err != nil {
			// still send the invoice without a link
			s.log.Error(ctx, "payment link failed", "invoice", inv.ID, "error", err)
		} else {
			inv.PaymentLinkID, inv.PaymentLinkURL = link.ID, link.URL
			fields["paymentLinkId"] = link.ID
			fields["paymentLinkUrl"] = link.URL
		}
	}

	if err := s.mail.Send(ctx, invoiceMessage(inv)); err != nil {
		return nil, fmt.Errorf("send invoice email: %w", err)
	}

	for k, v := range s.statusFields(domain.StatusSent) {
		fields[k] = v
	}
	inv, err = s.repo.Update(ctx, ownerID, invoiceID, fields)
	if err != nil {
		return nil, err
	}
	s.record(ctx, ownerID, inv.ID, activity.ActionSent, fmt.Sprintf("Sent invoice %s to %s", inv.InvoiceNumber, inv.ClientEmail))
	return inv, nil
}

func invoiceMessage(inv *domain.Invoice) mailer.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", inv.ClientName)
	fmt.Fprintf(&b, "Invoice %s for %.2f %s", inv.InvoiceNumber, inv.Total, strings.ToUpper(inv.Currency))
	if inv.DueDate != nil {
		fmt.Fprintf(&b, " is due on %s", inv.DueDate.Format("2006-01-02"))
	}
	b.WriteString(".\n")
	if inv.PaymentLinkURL != "" {
		fmt.Fprintf(&b, "\nPay online: %s\n", inv.PaymentLinkURL)
	}
	return mailer.Message{
		To:      inv.ClientEmail,
		Subject: "Invoice " + inv.InvoiceNumber,
		Body:    b.String(),
	}
}

func (s *InvoiceService) paymentRequest(ownerID string, inv *domain.Invoice) provider.PaymentRequest {
	return provider.PaymentRequest{
		AmountCents: inv.AmountCents(),
		Currency:    inv.Currency,
		Description: "Invoice " + inv.InvoiceNumber,
		Metadata: map[string]string{
			"invoiceId": inv.ID,
			"userId":    ownerID,
		},
	}
}

func (s *InvoiceService) payable(ctx context.Context, ownerID, invoiceID string) (*domain.Invoice, error) {
	if s.payments == nil {
		return nil, domain.ErrPaymentsUnavailable
	}
	inv, err := s.repo.Get(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusSent && inv.Status != domain.StatusOverdue {
		return nil, domain.ErrNotPayable
	}
	return inv, nil
}

// CreatePaymentIntent returns the client secret for paying the invoice in-app.
// The intent carries invoiceId and userId so the webhook can settle it.
func (s *InvoiceService) CreatePaymentIntent(ctx context.Context, ownerID, invoiceID string) (string, error) {
	inv, err := s.payable(ctx, ownerID, invoiceID)
	if err != nil {
		return "", err
	}
	pi, err := s.payments.CreatePaymentIntent(ctx, s.paymentRequest(ownerID, inv))
	if err != nil {
		return "", err
	}
	if _, err := s.repo.Update(ctx, ownerID, invoiceID, map[string]any{"paymentIntentId": pi.ID}); err != nil {
		return "", err
	}
	return pi.ClientSecret, nil
}

// CreatePaymentLink creates (or returns the existing) hosted payment link.
func (s *InvoiceService) CreatePaymentLink(ctx context.Context, ownerID, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.payable(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.PaymentLinkURL != "" {
		return inv, nil
	}
	link, err := s.payments.CreatePaymentLink(ctx, s.paymentRequest(ownerID, inv))
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, ownerID, invoiceID, map[string]any{
		"paymentLinkId":  link.ID,
		"paymentLinkUrl": link.URL,
	})
}

// MarkPaid settles an invoice after the provider confirmed payment. An invoice
// that is already paid is left alone, so replays are harmless.
func (s *InvoiceService) MarkPaid(ctx context.Context, ownerID, invoiceID, paymentIntentID string) error {
	inv, err := s.repo.Get(ctx, ownerID, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status == domain.StatusPaid {
		return nil
	}

	fields := s.statusFields(domain.StatusPaid)
	if paymentIntentID != "" {
		fields["paymentIntentId"] = paymentIntentID
	}
	if _, err := s.repo.Update(ctx, ownerID, invoiceID, fields); err != nil {
		return err
	}
	s.record(ctx, ownerID, invoiceID, activity.ActionUpdated, fmt.Sprintf("Invoice %s paid", inv.InvoiceNumber))
	return nil
}

// MarkOverdue flips sent invoices whose due date has passed. Returns how many
// changed.
func (s *InvoiceService) MarkOverdue(ctx context.Context, ownerID string) (int, error) {
	sent, err := s.repo.ListByStatus(ctx, ownerID, domain.StatusSent)
	if err != nil {
		return 0, err
	}
	now := s.Now()
	n := 0
	var errs []error
	for _, inv := range sent {
		if inv.DueDate == nil || !inv.DueDate.Before(now) {
			continue
		}
		if _, err := s.repo.Update(ctx, ownerID, inv.ID, map[string]any{"status": domain.StatusOverdue}); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
		s.record(ctx, ownerID, inv.ID, activity.ActionUpdated, fmt.Sprintf("Invoice %s is overdue", inv.InvoiceNumber))
	}
	return n, errors.Join(errs...)
}
