// Package webhook reconciles payment provider events into subscription,
// plan and invoice state. Once an event's signature is verified nothing it
// does is reported back to the provider: every step logs its own failure and
// the event is acknowledged.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/billing/domain"
	"github.com/tallyhq/tally-backend/internal/billing/provider"
	"github.com/tallyhq/tally-backend/internal/billing/repository"
	"github.com/tallyhq/tally-backend/internal/changes"
	"github.com/tallyhq/tally-backend/internal/logging"
	users "github.com/tallyhq/tally-backend/internal/users/domain"
)

// ErrInvalidSignature wraps every verification failure.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type Users interface {
	GetByCustomerID(ctx context.Context, customerID string) (*users.User, error)
	SetPlan(ctx context.Context, uid string, plan users.Plan) error
}

// Claims mirrors the plan into identity-provider custom claims.
type Claims interface {
	Grant(ctx context.Context, uid string, plan users.Plan) error
	Revoke(ctx context.Context, uid string) error
}

type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*provider.SubscriptionInfo, error)
}

// InvoicePayer settles a user's own invoice after a successful payment.
type InvoicePayer interface {
	MarkPaid(ctx context.Context, ownerID, invoiceID, paymentIntentID string) error
}

type ActivityRecorder interface {
	Record(ctx context.Context, ownerID string, typ activity.Type, action activity.Action, description string)
}

type Deps struct {
	Users         Users
	Claims        Claims // optional
	Subscriptions SubscriptionFetcher
	SubRepo       *repository.SubscriptionRepository
	BillingRepo   *repository.BillingInvoiceRepository
	Invoices      InvoicePayer
	Activity      ActivityRecorder
	Changes       changes.Publisher
	Ledger        Ledger // optional
	Log           logging.Logger
}

type handlerFunc func(ctx context.Context, ev stripe.Event) error

type Reconciler struct {
	secret   string
	deps     Deps
	log      logging.Logger
	handlers map[stripe.EventType]handlerFunc

	Now func() time.Time
}

func NewReconciler(secret string, deps Deps) *Reconciler {
	r := &Reconciler{
		secret: secret,
		deps:   deps,
		log:    deps.Log.With("component", "stripe-webhook"),
		Now:    func() time.Time { return time.Now().UTC() },
	}
	r.handlers = map[stripe.EventType]handlerFunc{
		stripe.EventTypeCheckoutSessionCompleted:    r.checkoutCompleted,
		stripe.EventTypeInvoicePaid:                 r.invoicePaid,
		stripe.EventTypePaymentIntentSucceeded:      r.paymentIntentSucceeded,
		stripe.EventTypeInvoicePaymentFailed:        r.invoicePaymentFailed,
		stripe.EventTypeCustomerSubscriptionDeleted: r.subscriptionDeleted,
	}
	return r
}

// Verify checks the signature header against the raw payload.
func (r *Reconciler) Verify(payload []byte, signature string) (stripe.Event, error) {
	if r.secret == "" {
		return stripe.Event{}, fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, r.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ev, nil
}

// Handle dispatches a verified event. It never fails: duplicate, unknown and
// broken events are logged and dropped.
func (r *Reconciler) Handle(ctx context.Context, ev stripe.Event) {
	h, ok := r.handlers[ev.Type]
	if !ok {
		r.log.Debug(ctx, "ignoring event", "type", ev.Type, "event", ev.ID)
		return
	}

	if r.deps.Ledger != nil && ev.ID != "" {
		first, err := r.deps.Ledger.FirstSeen(ctx, ev.ID)
		if err != nil {
			r.log.Warn(ctx, "event ledger unavailable", "event", ev.ID, "error", err)
		} else if !first {
			r.log.Info(ctx, "duplicate event skipped", "type", ev.Type, "event", ev.ID)
			return
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error(ctx, "webhook handler panic",
				"type", ev.Type, "event", ev.ID, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
		}
	}()
	if err := h(ctx, ev); err != nil {
		r.log.Error(ctx, "webhook handler failed", "type", ev.Type, "event", ev.ID, "error", err)
	}
}

// step runs one independent sub-step and logs its failure.
func (r *Reconciler) step(ctx context.Context, ev stripe.Event, name string, fn func() error) {
	if err := fn(); err != nil {
		r.log.Error(ctx, "webhook step failed", "type", ev.Type, "event", ev.ID, "step", name, "error", err)
	}
}

// userForCustomer resolves a customer; a miss is logged and yields nil.
func (r *Reconciler) userForCustomer(ctx context.Context, ev stripe.Event, customerID string) (*users.User, error) {
	if customerID == "" {
		r.log.Warn(ctx, "event without customer", "type", ev.Type, "event", ev.ID)
		return nil, nil
	}
	u, err := r.deps.Users.GetByCustomerID(ctx, customerID)
	if errors.Is(err, users.ErrUserNotFound) {
		r.log.Warn(ctx, "no user for customer", "type", ev.Type, "event", ev.ID, "customer", customerID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup customer %s: %w", customerID, err)
	}
	return u, nil
}

func (r *Reconciler) notify(ctx context.Context, uid string) {
	if r.deps.Changes != nil {
		r.deps.Changes.Publish(ctx, uid, changes.Notice{Type: "subscription", ID: uid, Action: string(activity.ActionUpdated)})
	}
}

func (r *Reconciler) checkoutCompleted(ctx context.Context, ev stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}
	if sess.Mode != stripe.CheckoutSessionModeSubscription || sess.Subscription == nil {
		return nil
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	user, err := r.userForCustomer(ctx, ev, customerID)
	if err != nil || user == nil {
		return err
	}
	uid := user.FirebaseUID

	info, err := r.fetchSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		r.log.Error(ctx, "fetch subscription failed", "event", ev.ID, "subscription", sess.Subscription.ID, "error", err)
		info = &provider.SubscriptionInfo{ID: sess.Subscription.ID, CustomerID: customerID, Status: domain.StatusActive}
	}
	plan := users.ParsePlan(info.Plan)
	ended := domain.IsTerminalStatus(info.Status)
	docPlan := plan
	if ended {
		docPlan = users.PlanFree
	}

	r.step(ctx, ev, "subscription", func() error {
		return r.deps.SubRepo.Put(ctx, uid, &domain.Subscription{
			SubscriptionID:     info.ID,
			CustomerID:         customerID,
			Plan:               string(docPlan),
			Status:             info.Status,
			PriceID:            info.PriceID,
			CurrentPeriodStart: info.CurrentPeriodStart,
			CurrentPeriodEnd:   info.CurrentPeriodEnd,
			PaymentMethod:      info.PaymentMethod,
		})
	})
	if ended {
		r.log.Warn(ctx, "checkout for ended subscription, plan unchanged", "user", uid, "subscription", info.ID, "status", info.Status)
		r.notify(ctx, uid)
		return nil
	}
	r.step(ctx, ev, "plan", func() error {
		return r.deps.Users.SetPlan(ctx, uid, plan)
	})
	if r.deps.Claims != nil {
		r.step(ctx, ev, "claims", func() error {
			return r.deps.Claims.Grant(ctx, uid, plan)
		})
	}
	r.deps.Activity.Record(ctx, uid, activity.TypeSystem, activity.ActionUpdated, fmt.Sprintf("Subscribed to the %s plan", plan))
	r.notify(ctx, uid)
	r.log.Info(ctx, "subscription activated", "user", uid, "plan", plan, "subscription", info.ID)
	return nil
}

func (r *Reconciler) fetchSubscription(ctx context.Context, id string) (*provider.SubscriptionInfo, error) {
	if r.deps.Subscriptions == nil {
		return nil, provider.ErrNotConfigured
	}
	return r.deps.Subscriptions.GetSubscription(ctx, id)
}

func (r *Reconciler) invoicePaid(ctx context.Context, ev stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	if !domain.IsSubscriptionReason(string(inv.BillingReason)) {
		return nil
	}

	customerID := ""
	if inv.Customer != nil {
		customerID = inv.Customer.ID
	}
	user, err := r.userForCustomer(ctx, ev, customerID)
	if err != nil || user == nil {
		return err
	}

	rec := &domain.BillingInvoice{
		ID:          inv.ID,
		Number:      inv.Number,
		CustomerID:  customerID,
		AmountPaid:  inv.AmountPaid,
		Currency:    string(inv.Currency),
		HostedURL:   inv.HostedInvoiceURL,
		PDFURL:      inv.InvoicePDF,
		Status:      "paid",
		PeriodStart: unixUTC(inv.PeriodStart),
		PeriodEnd:   unixUTC(inv.PeriodEnd),
		PaidAt:      r.Now(),
	}
	if inv.Subscription != nil {
		rec.SubscriptionID = inv.Subscription.ID
	}
	if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
		rec.PaidAt = unixUTC(inv.StatusTransitions.PaidAt)
	}

	r.step(ctx, ev, "billing invoice", func() error {
		return r.deps.BillingRepo.Put(ctx, user.FirebaseUID, rec)
	})
	r.notify(ctx, user.FirebaseUID)
	return nil
}

func (r *Reconciler) paymentIntentSucceeded(ctx context.Context, ev stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	invoiceID, uid := pi.Metadata["invoiceId"], pi.Metadata["userId"]
	if invoiceID == "" || uid == "" {
		r.log.Debug(ctx, "payment intent without invoice metadata", "event", ev.ID, "payment_intent", pi.ID)
		return nil
	}

	r.step(ctx, ev, "invoice paid", func() error {
		return r.deps.Invoices.MarkPaid(ctx, uid, invoiceID, pi.ID)
	})
	return nil
}

func (r *Reconciler) invoicePaymentFailed(ctx context.Context, ev stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	if !domain.IsSubscriptionReason(string(inv.BillingReason)) {
		return nil
	}

	customerID := ""
	if inv.Customer != nil {
		customerID = inv.Customer.ID
	}
	user, err := r.userForCustomer(ctx, ev, customerID)
	if err != nil || user == nil {
		return err
	}

	change := repository.StatusChange{CustomerID: customerID, Status: domain.StatusPastDue}
	if inv.Subscription != nil {
		change.SubscriptionID = inv.Subscription.ID
	}
	r.step(ctx, ev, "subscription status", func() error {
		return r.deps.SubRepo.SetStatus(ctx, user.FirebaseUID, change)
	})
	r.notify(ctx, user.FirebaseUID)
	r.log.Warn(ctx, "subscription payment failed", "user", user.FirebaseUID, "invoice", inv.ID)
	return nil
}

func (r *Reconciler) subscriptionDeleted(ctx context.Context, ev stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	user, err := r.userForCustomer(ctx, ev, customerID)
	if err != nil || user == nil {
		return err
	}
	uid := user.FirebaseUID

	endedAt := r.Now()
	if sub.EndedAt > 0 {
		endedAt = unixUTC(sub.EndedAt)
	}

	r.step(ctx, ev, "subscription status", func() error {
		return r.deps.SubRepo.SetStatus(ctx, uid, repository.StatusChange{
			SubscriptionID: sub.ID,
			CustomerID:     customerID,
			Status:         domain.StatusCanceled,
			Plan:           string(users.PlanFree),
			EndedAt:        &endedAt,
		})
	})
	r.step(ctx, ev, "plan", func() error {
		return r.deps.Users.SetPlan(ctx, uid, users.PlanFree)
	})
	if r.deps.Claims != nil {
		r.step(ctx, ev, "claims", func() error {
			return r.deps.Claims.Revoke(ctx, uid)
		})
	}
	r.deps.Activity.Record(ctx, uid, activity.TypeSystem, activity.ActionUpdated, "Subscription canceled")
	r.notify(ctx, uid)
	r.log.Info(ctx, "subscription canceled", "user", uid, "subscription", sub.ID)
	return nil
}

func unixUTC(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
