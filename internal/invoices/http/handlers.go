package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/auth"
	clients "github.com/tallyhq/tally-backend/internal/clients/domain"
	"github.com/tallyhq/tally-backend/internal/invoices/domain"
	"github.com/tallyhq/tally-backend/internal/invoices/service"
)

type Handler struct {
	svc *service.InvoiceService
}

func New(svc *service.InvoiceService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:invoiceId", h.get)
	rg.PATCH("/:invoiceId", h.update)
	rg.PUT("/:invoiceId/status", h.updateStatus)
	rg.DELETE("/:invoiceId", h.delete)
	rg.POST("/:invoiceId/send", h.send)
	rg.POST("/:invoiceId/payment-intent", h.paymentIntent)
	rg.POST("/:invoiceId/payment-link", h.paymentLink)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvoiceNotFound), errors.Is(err, clients.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrNoItems),
		errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrNoRecipient):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrInvoiceNotEditable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotPayable):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrPaymentsUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": fallback})
	}
}

func currentUser(c *gin.Context) (string, bool) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return "", false
	}
	return uid, true
}

func (h *Handler) create(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req domain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	inv, err := h.svc.Create(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, err, "failed to create invoice")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "invoice": inv})
}

func (h *Handler) list(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.svc.List(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, "failed to list invoices")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invoices": items})
}

func (h *Handler) get(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	inv, err := h.svc.Get(c.Request.Context(), uid, c.Param("invoiceId"))
	if err != nil {
		writeError(c, err, "failed to load invoice")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invoice": inv})
}

func (h *Handler) update(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req domain.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	inv, err := h.svc.Update(c.Request.Context(), uid, c.Param("invoiceId"), req)
	if err != nil {
		writeError(c, err, "failed to update invoice")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invoice": inv})
}

type statusReq struct {
	Status domain.Status `json:"status"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	inv, err := h.svc.UpdateStatus(c.Request.Context(), uid, c.Param("invoiceId"), req.Status)
	if err != nil {
		writeError(c, err, "failed to update invoice status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invoice": inv})
}

func (h *Handler) delete(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), uid, c.Param("invoiceId")); err != nil {
		writeError(c, err, "failed to delete invoice")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) send(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	inv, err := h.svc.Send(c.Request.Context(), uid, c.Param("invoiceId"))
	if err != nil {
		writeError(c, err, "failed to send invoice")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invoice": inv})
}

func (h *Handler) paymentIntent(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	secret, err := h.svc.CreatePaymentIntent(c.Request.Context(), uid, c.Param("invoiceId"))
	if err != nil {
		writeError(c, err, "failed to create payment intent")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "clientSecret": secret})
}

func (h *Handler) paymentLink(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	inv, err := h.svc.CreatePaymentLink(c.Request.Context(), uid, c.Param("invoiceId"))
	if err != nil {
		writeError(c, err, "failed to create payment link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "invoice": inv, "url": inv.PaymentLinkURL})
}
