package http

import "github.com/gin-gonic/gin"

// Register attaches project, task and per-project time-entry routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:projectId", h.get)
	rg.PATCH("/:projectId", h.update)
	rg.DELETE("/:projectId", h.delete)

	rg.GET("/:projectId/tasks", h.listTasks)
	rg.POST("/:projectId/tasks", h.createTask)
	rg.PATCH("/:projectId/tasks/:taskId", h.updateTask)
	rg.DELETE("/:projectId/tasks/:taskId", h.deleteTask)
	rg.POST("/:projectId/tasks/:taskId/approve", h.approveTask)

	rg.GET("/:projectId/time-entries", h.listTimeEntries)
	rg.POST("/:projectId/time-entries", h.createTimeEntry)
	rg.PATCH("/:projectId/time-entries/:entryId", h.updateTimeEntry)
	rg.POST("/:projectId/time-entries/:entryId/stop", h.stopTimer)
	rg.DELETE("/:projectId/time-entries/:entryId", h.deleteTimeEntry)
}

// RegisterTimeEntries attaches the owner-wide time routes.
func (h *Handler) RegisterTimeEntries(rg *gin.RouterGroup) {
	rg.GET("", h.listAllTimeEntries)
	rg.POST("/start", h.startTimer)
}
