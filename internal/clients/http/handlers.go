package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/auth"
	"github.com/tallyhq/tally-backend/internal/clients/domain"
	"github.com/tallyhq/tally-backend/internal/clients/service"
)

type Handler struct {
	svc *service.ClientService
}

func New(svc *service.ClientService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:clientId", h.get)
	rg.PATCH("/:clientId", h.update)
	rg.PUT("/:clientId/portal", h.updatePortal)
	rg.DELETE("/:clientId", h.delete)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": fallback})
	}
}

func (h *Handler) create(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	var req domain.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	client, err := h.svc.Create(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, err, "failed to create client")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "client": client})
}

func (h *Handler) list(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	items, err := h.svc.List(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, "failed to list clients")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "clients": items})
}

func (h *Handler) get(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	client, err := h.svc.Get(c.Request.Context(), uid, c.Param("clientId"))
	if err != nil {
		writeError(c, err, "failed to load client")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "client": client})
}

func (h *Handler) update(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	var req domain.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	client, err := h.svc.Update(c.Request.Context(), uid, c.Param("clientId"), req)
	if err != nil {
		writeError(c, err, "failed to update client")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "client": client})
}

func (h *Handler) updatePortal(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	var req domain.PortalSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	client, err := h.svc.UpdatePortalSettings(c.Request.Context(), uid, c.Param("clientId"), req)
	if err != nil {
		writeError(c, err, "failed to update portal settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "client": client})
}

func (h *Handler) delete(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	if err := h.svc.Delete(c.Request.Context(), uid, c.Param("clientId")); err != nil {
		writeError(c, err, "failed to delete client")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
