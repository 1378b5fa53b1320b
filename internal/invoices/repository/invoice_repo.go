package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally-backend/internal/docstore"
	"github.com/tallyhq/tally-backend/internal/invoices/domain"
)

const counterField = "seq"

type InvoiceRepository struct {
	store docstore.Store
	Now   func() time.Time
}

func NewInvoiceRepository(store docstore.Store) *InvoiceRepository {
	return &InvoiceRepository{
		store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func invoicesPath(ownerID string) string {
	return docstore.Path("users", ownerID, "invoices")
}

func invoicePath(ownerID, invoiceID string) string {
	return docstore.Path("users", ownerID, "invoices", invoiceID)
}

func counterPath(ownerID string, year int) string {
	return docstore.Path("users", ownerID, "counters", "invoices-"+strconv.Itoa(year))
}

// NextNumber hands out the next invoice number for (owner, year) from an
// atomic counter. A counter created for a year that already has invoices is
// advanced past the highest existing sequence first.
func (r *InvoiceRepository) NextNumber(ctx context.Context, ownerID string, year int) (string, error) {
	path := counterPath(ownerID, year)
	seq, err := r.store.Increment(ctx, path, counterField, 1)
	if err != nil {
		return "", fmt.Errorf("invoice counter: %w", err)
	}

	if seq == 1 {
		latest, err := r.latestSequence(ctx, ownerID, year)
		if err != nil {
			// Hand the slot back so the next call seeds again.
			if _, rbErr := r.store.Increment(ctx, path, counterField, -1); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("release invoice counter: %w", rbErr))
			}
			return "", err
		}
		if latest > 0 {
			seq, err = r.store.Increment(ctx, path, counterField, latest)
			if err != nil {
				return "", fmt.Errorf("seed invoice counter: %w", err)
			}
		}
	}
	return domain.FormatNumber(year, seq), nil
}

// latestSequence returns the highest sequence among the year's invoice
// numbers, or 0 when there are none. Numbers are compared numerically so that
// INV-2026-1000 sorts after INV-2026-999.
func (r *InvoiceRepository) latestSequence(ctx context.Context, ownerID string, year int) (int64, error) {
	docs, err := r.store.Query(ctx, invoicesPath(ownerID), docstore.Query{
		Where: []docstore.Filter{{Field: "year", Value: year}},
	})
	if err != nil {
		return 0, fmt.Errorf("latest invoice number: %w", err)
	}
	invs, err := docstore.DecodeAll[domain.Invoice](docs)
	if err != nil {
		return 0, err
	}
	var latest int64
	for _, inv := range invs {
		if seq, ok := domain.ParseSequence(inv.InvoiceNumber); ok && seq > latest {
			latest = seq
		}
	}
	return latest, nil
}

func (r *InvoiceRepository) Create(ctx context.Context, ownerID string, inv *domain.Invoice) error {
	now := r.Now()
	inv.ID = uuid.New().String()
	inv.OwnerID = ownerID
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if err := r.store.Set(ctx, invoicePath(ownerID, inv.ID), inv); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) Get(ctx context.Context, ownerID, invoiceID string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.store.Get(ctx, invoicePath(ownerID, invoiceID), &inv)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

// List returns the owner's invoices, newest first.
func (r *InvoiceRepository) List(ctx context.Context, ownerID string) ([]domain.Invoice, error) {
	return r.query(ctx, ownerID, nil)
}

func (r *InvoiceRepository) ListByClient(ctx context.Context, ownerID, clientID string) ([]domain.Invoice, error) {
	return r.query(ctx, ownerID, []docstore.Filter{{Field: "clientId", Value: clientID}})
}

func (r *InvoiceRepository) ListByStatus(ctx context.Context, ownerID string, status domain.Status) ([]domain.Invoice, error) {
	return r.query(ctx, ownerID, []docstore.Filter{{Field: "status", Value: status}})
}

func (r *InvoiceRepository) query(ctx context.Context, ownerID string, where []docstore.Filter) ([]domain.Invoice, error) {
	docs, err := r.store.Query(ctx, invoicesPath(ownerID), docstore.Query{
		Where:   where,
		OrderBy: "createdAt",
		Dir:     docstore.Desc,
	})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return docstore.DecodeAll[domain.Invoice](docs)
}

func (r *InvoiceRepository) Update(ctx context.Context, ownerID, invoiceID string, fields map[string]any) (*domain.Invoice, error) {
	fields["updatedAt"] = r.Now()
	err := r.store.Merge(ctx, invoicePath(ownerID, invoiceID), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return r.Get(ctx, ownerID, invoiceID)
}

func (r *InvoiceRepository) Delete(ctx context.Context, ownerID, invoiceID string) error {
	if err := r.store.Delete(ctx, invoicePath(ownerID, invoiceID)); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}
