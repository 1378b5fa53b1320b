package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/billing/provider"
	"github.com/tallyhq/tally-backend/internal/changes"
	clientsdomain "github.com/tallyhq/tally-backend/internal/clients/domain"
	clientsrepo "github.com/tallyhq/tally-backend/internal/clients/repository"
	"github.com/tallyhq/tally-backend/internal/docstore"
	"github.com/tallyhq/tally-backend/internal/invoices/domain"
	"github.com/tallyhq/tally-backend/internal/invoices/repository"
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/mailer"
	"github.com/tallyhq/tally-backend/internal/testutil"
)

const owner = "u1"

type fakeRecorder struct {
	mu      sync.Mutex
	actions []activity.Action
}

func (f *fakeRecorder) Record(_ context.Context, _ string, _ activity.Type, action activity.Action, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakePayments struct {
	intents []provider.PaymentRequest
	links   []provider.PaymentRequest
	linkErr error
}

func (p *fakePayments) CreatePaymentIntent(_ context.Context, req provider.PaymentRequest) (*provider.PaymentIntent, error) {
	p.intents = append(p.intents, req)
	return &provider.PaymentIntent{ID: fmt.Sprintf("pi_%d", len(p.intents)), ClientSecret: "secret"}, nil
}

func (p *fakePayments) CreatePaymentLink(_ context.Context, req provider.PaymentRequest) (*provider.PaymentLink, error) {
	if p.linkErr != nil {
		return nil, p.linkErr
	}
	p.links = append(p.links, req)
	return &provider.PaymentLink{ID: "plink_1", URL: "https://pay.example/plink_1"}, nil
}

type fixture struct {
	svc      *InvoiceService
	store    docstore.Store
	clients  *clientsrepo.ClientRepository
	mail     *fakeMailer
	payments *fakePayments
	rec      *fakeRecorder
	clock    *testutil.Clock
}

func newFixture(t *testing.T, withPayments bool) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	clock := testutil.NewClock(time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC))

	repo := repository.NewInvoiceRepository(store)
	repo.Now = clock.Now
	clients := clientsrepo.NewClientRepository(store)

	f := &fixture{store: store, clients: clients, mail: &fakeMailer{}, rec: &fakeRecorder{}, clock: clock}
	var payments Payments
	if withPayments {
		f.payments = &fakePayments{}
		payments = f.payments
	}
	f.svc = NewInvoiceService(repo, clients, payments, f.mail, f.rec, changes.Nop{}, logging.Nop())
	f.svc.Now = clock.Now
	return f
}

func (f *fixture) create(t *testing.T, email string) *domain.Invoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), owner, domain.CreateInvoiceRequest{
		ClientName:  "Acme",
		ClientEmail: email,
		Items:       []domain.Item{{Description: "Work", Quantity: 2, UnitPrice: 50}},
	})
	require.NoError(t, err)
	return inv
}

func TestInvoiceService_CreateNumbersSequentially(t *testing.T) {
	f := newFixture(t, false)

	for i := 1; i <= 3; i++ {
		inv := f.create(t, "ap@acme.test")
		assert.Equal(t, fmt.Sprintf("INV-2026-%03d", i), inv.InvoiceNumber)
		assert.Equal(t, domain.StatusDraft, inv.Status)
		assert.Equal(t, 100.0, inv.Total)
		assert.Equal(t, "usd", inv.Currency)
	}

	// a new year starts over
	f.clock.T = time.Date(2027, 1, 1, 0, 0, 1, 0, time.UTC)
	inv := f.create(t, "ap@acme.test")
	assert.Equal(t, "INV-2027-001", inv.InvoiceNumber)

	// other owners have their own sequence
	other, err := f.svc.Create(context.Background(), "u2", domain.CreateInvoiceRequest{
		Items: []domain.Item{{Quantity: 1, UnitPrice: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2027-001", other.InvoiceNumber)
}

func TestInvoiceService_ConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	f := newFixture(t, false)
	const n = 20

	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := f.svc.Create(context.Background(), owner, domain.CreateInvoiceRequest{
				Items: []domain.Item{{Quantity: 1, UnitPrice: 10}},
			})
			errs[i] = err
			if err == nil {
				numbers[i] = inv.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "duplicate %s", numbers[i])
		seen[numbers[i]] = true
	}
	assert.Len(t, seen, n)
}

func TestInvoiceService_CounterSeedsFromLegacyInvoices(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for _, num := range []string{"INV-2026-007", "INV-2026-012", "INV-2026-003"} {
		id := "legacy-" + num
		require.NoError(t, f.store.Set(ctx, docstore.Path("users", owner, "invoices", id), &domain.Invoice{
			ID: id, OwnerID: owner, InvoiceNumber: num, Year: 2026, Status: domain.StatusSent,
		}))
	}

	assert.Equal(t, "INV-2026-013", f.create(t, "").InvoiceNumber)
	assert.Equal(t, "INV-2026-014", f.create(t, "").InvoiceNumber)
}

func TestInvoiceService_CreateFillsFromClient(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	c := &clientsdomain.Client{Name: "Globex", Email: "billing@globex.test"}
	require.NoError(t, f.clients.Create(ctx, owner, c))

	inv, err := f.svc.Create(ctx, owner, domain.CreateInvoiceRequest{
		ClientID: c.ID,
		Items:    []domain.Item{{Quantity: 1, UnitPrice: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Globex", inv.ClientName)
	assert.Equal(t, "billing@globex.test", inv.ClientEmail)

	_, err = f.svc.Create(ctx, owner, domain.CreateInvoiceRequest{
		ClientID: "missing",
		Items:    []domain.Item{{Quantity: 1, UnitPrice: 5}},
	})
	assert.ErrorIs(t, err, clientsdomain.ErrClientNotFound)

	_, err = f.svc.Create(ctx, owner, domain.CreateInvoiceRequest{})
	assert.ErrorIs(t, err, domain.ErrNoItems)
}

func TestInvoiceService_UpdateOnlyDrafts(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	inv := f.create(t, "ap@acme.test")

	updated, err := f.svc.Update(ctx, owner, inv.ID, domain.UpdateInvoiceRequest{
		Items: []domain.Item{{Description: "More", Quantity: 4, UnitPrice: 25.5}},
	})
	require.NoError(t, err)
	assert.Equal(t, 102.0, updated.Total)
	assert.Equal(t, 102.0, updated.Items[0].Total)

	_, err = f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusSent)
	require.NoError(t, err)

	notes := "late"
	_, err = f.svc.Update(ctx, owner, inv.ID, domain.UpdateInvoiceRequest{Notes: &notes})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotEditable)
	assert.ErrorIs(t, f.svc.Delete(ctx, owner, inv.ID), domain.ErrInvoiceNotEditable)
}

func TestInvoiceService_StatusLattice(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	inv := f.create(t, "ap@acme.test")

	_, err := f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusSent)
	require.NoError(t, err)
	require.NotNil(t, got.SentAt)

	got, err = f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusOverdue)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, got.Status)

	got, err = f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusPaid)
	require.NoError(t, err)
	require.NotNil(t, got.PaidAt)

	_, err = f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusDraft)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, owner, inv.ID, "void")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	assert.Equal(t, []activity.Action{
		activity.ActionCreated, activity.ActionSent, activity.ActionUpdated, activity.ActionUpdated,
	}, f.rec.actions)
}

func TestInvoiceService_SendWithPaymentLink(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	inv := f.create(t, "ap@acme.test")

	sent, err := f.svc.Send(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	assert.Equal(t, "https://pay.example/plink_1", sent.PaymentLinkURL)

	require.Len(t, f.payments.links, 1)
	assert.Equal(t, int64(10000), f.payments.links[0].AmountCents)
	assert.Equal(t, map[string]string{"invoiceId": inv.ID, "userId": owner}, f.payments.links[0].Metadata)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "ap@acme.test", f.mail.sent[0].To)
	assert.Contains(t, f.mail.sent[0].Body, "https://pay.example/plink_1")

	// resending reuses the link
	_, err = f.svc.Send(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Len(t, f.payments.links, 1)
	assert.Len(t, f.mail.sent, 2)
}

func TestInvoiceService_SendFailures(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	noEmail := f.create(t, "")
	_, err := f.svc.Send(ctx, owner, noEmail.ID)
	assert.ErrorIs(t, err, domain.ErrNoRecipient)

	// link failure does not block sending
	f.payments.linkErr = errors.New("provider down")
	inv := f.create(t, "ap@acme.test")
	sent, err := f.svc.Send(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, sent.PaymentLinkURL)

	// mail failure leaves the invoice unsent
	f.mail.err = errors.New("smtp down")
	other := f.create(t, "ap@acme.test")
	_, err = f.svc.Send(ctx, owner, other.ID)
	require.Error(t, err)
	got, err := f.svc.Get(ctx, owner, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.Status)
}

func TestInvoiceService_PaymentIntent(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, false)
	inv := f.create(t, "ap@acme.test")
	_, err := f.svc.CreatePaymentIntent(ctx, owner, inv.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentsUnavailable)

	f = newFixture(t, true)
	inv = f.create(t, "ap@acme.test")
	_, err = f.svc.CreatePaymentIntent(ctx, owner, inv.ID)
	assert.ErrorIs(t, err, domain.ErrNotPayable, "drafts are not payable")

	_, err = f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusSent)
	require.NoError(t, err)
	secret, err := f.svc.CreatePaymentIntent(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", secret)

	got, err := f.svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", got.PaymentIntentID)
}

func TestInvoiceService_MarkPaidIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	inv := f.create(t, "ap@acme.test")
	_, err := f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusSent)
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkPaid(ctx, owner, inv.ID, "pi_9"))
	first, err := f.svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, first.Status)
	assert.Equal(t, "pi_9", first.PaymentIntentID)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.MarkPaid(ctx, owner, inv.ID, "pi_9"))
	second, err := f.svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.True(t, second.PaidAt.Equal(*first.PaidAt))

	assert.ErrorIs(t, f.svc.MarkPaid(ctx, owner, "missing", ""), domain.ErrInvoiceNotFound)
}

func TestInvoiceService_MarkOverdue(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	past := f.clock.T.Add(-24 * time.Hour)
	future := f.clock.T.Add(24 * time.Hour)
	mk := func(due *time.Time, send bool) string {
		inv, err := f.svc.Create(ctx, owner, domain.CreateInvoiceRequest{
			Items:   []domain.Item{{Quantity: 1, UnitPrice: 1}},
			DueDate: due,
		})
		require.NoError(t, err)
		if send {
			_, err = f.svc.UpdateStatus(ctx, owner, inv.ID, domain.StatusSent)
			require.NoError(t, err)
		}
		return inv.ID
	}
	late := mk(&past, true)
	onTime := mk(&future, true)
	draft := mk(&past, false)
	noDue := mk(nil, true)

	n, err := f.svc.MarkOverdue(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	want := map[string]domain.Status{
		late:   domain.StatusOverdue,
		onTime: domain.StatusSent,
		draft:  domain.StatusDraft,
		noDue:  domain.StatusSent,
	}
	for id, status := range want {
		got, err := f.svc.Get(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status, id)
	}
}
