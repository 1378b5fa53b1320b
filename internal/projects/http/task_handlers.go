package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/projects/domain"
)

func (h *Handler) listTasks(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	tasks, err := h.svc.ListTasks(c.Request.Context(), uid, c.Param("projectId"))
	if err != nil {
		writeError(c, err, "failed to list tasks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tasks": tasks})
}

func (h *Handler) createTask(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req domain.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	t, err := h.svc.CreateTask(c.Request.Context(), uid, c.Param("projectId"), req)
	if err != nil {
		writeError(c, err, "failed to create task")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "task": t})
}

func (h *Handler) updateTask(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req domain.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	t, err := h.svc.UpdateTask(c.Request.Context(), uid, c.Param("projectId"), c.Param("taskId"), req)
	if err != nil {
		writeError(c, err, "failed to update task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "task": t})
}

func (h *Handler) deleteTask(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	if err := h.svc.DeleteTask(c.Request.Context(), uid, c.Param("projectId"), c.Param("taskId")); err != nil {
		writeError(c, err, "failed to delete task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) approveTask(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	t, err := h.svc.ApproveTask(c.Request.Context(), uid, c.Param("projectId"), c.Param("taskId"))
	if err != nil {
		writeError(c, err, "failed to approve task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "task": t})
}
