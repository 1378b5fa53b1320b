package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/projects/domain"
)

func (h *Handler) listAllTimeEntries(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	entries, err := h.svc.ListAllTimeEntries(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, "failed to list time entries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "timeEntries": entries})
}

func (h *Handler) startTimer(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req domain.StartTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "projectId is required"})
		return
	}

	e, err := h.svc.StartTimer(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, err, "failed to start timer")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "timeEntry": e})
}

func (h *Handler) listTimeEntries(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	entries, err := h.svc.ListTimeEntries(c.Request.Context(), uid, c.Param("projectId"))
	if err != nil {
		writeError(c, err, "failed to list time entries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "timeEntries": entries})
}

func (h *Handler) createTimeEntry(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req domain.CreateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	req.ProjectID = c.Param("projectId")

	e, err := h.svc.CreateTimeEntry(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, err, "failed to create time entry")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "timeEntry": e})
}

func (h *Handler) updateTimeEntry(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req domain.UpdateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	e, err := h.svc.UpdateTimeEntry(c.Request.Context(), uid, c.Param("projectId"), c.Param("entryId"), req)
	if err != nil {
		writeError(c, err, "failed to update time entry")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "timeEntry": e})
}

func (h *Handler) stopTimer(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	e, err := h.svc.StopTimer(c.Request.Context(), uid, c.Param("projectId"), c.Param("entryId"))
	if err != nil {
		writeError(c, err, "failed to stop timer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "timeEntry": e})
}

func (h *Handler) deleteTimeEntry(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	if err := h.svc.DeleteTimeEntry(c.Request.Context(), uid, c.Param("projectId"), c.Param("entryId")); err != nil {
		writeError(c, err, "failed to delete time entry")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
