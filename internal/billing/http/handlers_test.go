package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v76/webhook"

	activity "github.com/tallyhq/tally-backend/internal/activity/domain"
	"github.com/tallyhq/tally-backend/internal/auth"
	"github.com/tallyhq/tally-backend/internal/billing/provider"
	"github.com/tallyhq/tally-backend/internal/billing/repository"
	"github.com/tallyhq/tally-backend/internal/billing/service"
	"github.com/tallyhq/tally-backend/internal/billing/webhook"
	"github.com/tallyhq/tally-backend/internal/changes"
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/testutil"
	users "github.com/tallyhq/tally-backend/internal/users/domain"
)

const secret = "whsec_test"

type stubUsers struct{}

func (s *stubUsers) Get(_ context.Context, uid string) (*users.User, error) {
	return &users.User{FirebaseUID: uid, Plan: users.PlanFree}, nil
}
func (s *stubUsers) SetCustomerID(context.Context, string, string) error { return nil }
func (s *stubUsers) GetByCustomerID(context.Context, string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}
func (s *stubUsers) SetPlan(context.Context, string, users.Plan) error { return nil }

type stubPayer struct{ calls int }

func (s *stubPayer) MarkPaid(context.Context, string, string, string) error {
	s.calls++
	return nil
}

type stubActivity struct{}

func (stubActivity) Record(context.Context, string, activity.Type, activity.Action, string) {}

type stubFetcher struct{}

func (stubFetcher) GetSubscription(context.Context, string) (*provider.SubscriptionInfo, error) {
	return nil, provider.ErrNotConfigured
}

func newRouter(t *testing.T) (*gin.Engine, *stubPayer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewStore(t)
	subs := repository.NewSubscriptionRepository(store)
	invs := repository.NewBillingInvoiceRepository(store)
	u := &stubUsers{}
	payer := &stubPayer{}

	svc := service.NewBillingService(nil, u, subs, invs, nil, "https://app.example", logging.Nop())
	rec := webhook.NewReconciler(secret, webhook.Deps{
		Users:         u,
		Subscriptions: stubFetcher{},
		SubRepo:       subs,
		BillingRepo:   invs,
		Invoices:      payer,
		Activity:      stubActivity{},
		Changes:       changes.Nop{},
		Log:           logging.Nop(),
	})
	h := New(svc, rec, logging.Nop())

	r := gin.New()
	h.RegisterWebhook(r.Group("/webhooks"))
	h.Register(r.Group("/billing", func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			auth.SetUser(c, uid, "")
		}
		c.Next()
	}))
	return r, payer
}

func paymentEvent(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":     "evt_1",
		"object": "event",
		"type":   "payment_intent.succeeded",
		"data": map[string]any{"object": map[string]any{
			"id":       "pi_1",
			"object":   "payment_intent",
			"metadata": map[string]any{"invoiceId": "inv-1", "userId": "u1"},
		}},
	})
	require.NoError(t, err)
	return b
}

func postWebhook(r *gin.Engine, payload []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", sig)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestWebhook_AcceptsSignedEvent(t *testing.T) {
	r, payer := newRouter(t)
	payload := paymentEvent(t)
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload: payload, Secret: secret, Timestamp: time.Now(),
	})

	rr := postWebhook(r, payload, signed.Header)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"received":true}`, rr.Body.String())
	assert.Equal(t, 1, payer.calls)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	r, payer := newRouter(t)
	payload := paymentEvent(t)
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload: payload, Secret: "whsec_wrong", Timestamp: time.Now(),
	})

	rr := postWebhook(r, payload, signed.Header)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
	assert.Zero(t, payer.calls)
}

func TestWebhook_RejectsOversizedBody(t *testing.T) {
	r, _ := newRouter(t)
	rr := postWebhook(r, []byte(strings.Repeat("x", maxWebhookBody+1)), "t=1,v1=00")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBillingRoutes(t *testing.T) {
	r, _ := newRouter(t)

	do := func(method, path, uid string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if uid != "" {
			req.Header.Set("X-Test-User", uid)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/billing/subscription", "", "").Code)

	rr := do(http.MethodGet, "/billing/subscription", "u1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "free", body["plan"])
	assert.Nil(t, body["subscription"])

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/billing/checkout", "u1", `{}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(http.MethodPost, "/billing/checkout", "u1", `{"plan":"pro"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/billing/invoices", "u1", "").Code)
}
