package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/auth"
	"github.com/tallyhq/tally-backend/internal/projects/domain"
	"github.com/tallyhq/tally-backend/internal/projects/service"
)

type Handler struct {
	svc *service.ProjectService
}

func New(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}

// requireUser writes 401 and returns "" when the request has no user.
func requireUser(c *gin.Context) string {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
	}
	return uid
}

// writeError maps domain errors to status codes; anything else is a 500 with
// the generic message.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrTimeEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidTimeRange):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrTimerNotRunning):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": fallback})
	}
}

func (h *Handler) create(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req domain.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.CreateProject(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, err, "failed to create project")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	items, err := h.svc.ListProjects(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, "failed to list projects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	p, err := h.svc.GetProject(c.Request.Context(), uid, c.Param("projectId"))
	if err != nil {
		writeError(c, err, "failed to load project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) update(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req domain.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.UpdateProject(c.Request.Context(), uid, c.Param("projectId"), req)
	if err != nil {
		writeError(c, err, "failed to update project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) delete(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	if err := h.svc.DeleteProject(c.Request.Context(), uid, c.Param("projectId")); err != nil {
		writeError(c, err, "failed to delete project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
