package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/activity/service"
	"github.com/tallyhq/tally-backend/internal/auth"
)

type Handler struct {
	svc *service.ActivityService
}

func New(svc *service.ActivityService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.list)
}

func (h *Handler) list(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.svc.Recent(c.Request.Context(), uid, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to load activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "activity": items})
}
