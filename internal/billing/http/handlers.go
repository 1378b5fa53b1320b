package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/auth"
	"github.com/tallyhq/tally-backend/internal/billing/domain"
	"github.com/tallyhq/tally-backend/internal/billing/provider"
	"github.com/tallyhq/tally-backend/internal/billing/service"
	"github.com/tallyhq/tally-backend/internal/billing/webhook"
	"github.com/tallyhq/tally-backend/internal/logging"
	users "github.com/tallyhq/tally-backend/internal/users/domain"
)

const maxWebhookBody = 64 << 10

type Handler struct {
	svc        *service.BillingService
	reconciler *webhook.Reconciler
	log        logging.Logger
}

func New(svc *service.BillingService, reconciler *webhook.Reconciler, log logging.Logger) *Handler {
	return &Handler{svc: svc, reconciler: reconciler, log: log}
}

// Register mounts the authenticated billing routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/checkout", h.checkout)
	rg.POST("/portal", h.portal)
	rg.GET("/subscription", h.subscription)
	rg.GET("/invoices", h.invoices)
}

// RegisterWebhook mounts the provider callback. It must not sit behind user auth.
func (h *Handler) RegisterWebhook(rg *gin.RouterGroup) {
	rg.POST("/stripe", h.stripeWebhook)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNoCustomer), errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrUnknownPlan):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, provider.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": fallback})
	}
}

func (h *Handler) stripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read body"})
		return
	}
	ev, err := h.reconciler.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warn(ctx, "webhook rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}
	h.reconciler.Handle(ctx, ev)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

type checkoutRequest struct {
	Plan string `json:"plan" binding:"required"`
}

func (h *Handler) checkout(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "plan is required"})
		return
	}
	url, err := h.svc.Checkout(c.Request.Context(), uid, req.Plan)
	if err != nil {
		h.log.Error(c.Request.Context(), "checkout failed", "user", uid, "error", err)
		writeError(c, err, "failed to create checkout session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": url})
}

func (h *Handler) portal(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	url, err := h.svc.PortalSession(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, "failed to create portal session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": url})
}

func (h *Handler) subscription(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	overview, err := h.svc.Subscription(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, "failed to load subscription")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "plan": overview.Plan, "subscription": overview.Subscription})
}

func (h *Handler) invoices(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	items, err := h.svc.Invoices(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, "failed to list billing invoices")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invoices": items})
}
