package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/auth"
	clients "github.com/tallyhq/tally-backend/internal/clients/domain"
	"github.com/tallyhq/tally-backend/internal/portal"
	projects "github.com/tallyhq/tally-backend/internal/projects/domain"
)

type Handler struct {
	svc *portal.Service
}

func New(svc *portal.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublic mounts the token-scoped client routes.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/:token", h.open)
	rg.POST("/:token/projects/:projectId/tasks/:taskId/approve", h.approveTask)
}

// RegisterOwner mounts link issuing on the owner's clients group.
func (h *Handler) RegisterOwner(rg *gin.RouterGroup) {
	rg.POST("/:clientId/portal-link", h.issueLink)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, portal.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, clients.ErrPortalDisabled), errors.Is(err, portal.ErrTasksHidden):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, clients.ErrClientNotFound),
		errors.Is(err, projects.ErrProjectNotFound),
		errors.Is(err, projects.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": fallback})
	}
}

func (h *Handler) issueLink(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	link, err := h.svc.IssueLink(c.Request.Context(), uid, c.Param("clientId"))
	if errors.Is(err, clients.ErrPortalDisabled) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		writeError(c, err, "failed to issue portal link")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "link": link})
}

func (h *Handler) open(c *gin.Context) {
	view, err := h.svc.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err, "failed to load portal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "portal": view})
}

func (h *Handler) approveTask(c *gin.Context) {
	task, err := h.svc.ApproveTask(c.Request.Context(), c.Param("token"), c.Param("projectId"), c.Param("taskId"))
	if err != nil {
		writeError(c, err, "failed to approve task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "task": task})
}
