package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/auth"
	"github.com/tallyhq/tally-backend/internal/users/domain"
	"github.com/tallyhq/tally-backend/internal/users/service"
)

type Handler struct {
	users *service.UserService
}

func New(users *service.UserService) *Handler {
	return &Handler{users: users}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/profile", h.GetProfile)
	rg.POST("/sync", h.SyncUser)
	rg.PUT("/profile", h.UpdateProfile)
}

// GetProfile returns the current user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}

	user, err := h.users.Get(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

// SyncUser is called by the front end right after Firebase sign-in so the
// account row exists before anything else runs.
func (h *Handler) SyncUser(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}

	// email always comes from the verified token
	var body struct {
		DisplayName *string `json:"display_name,omitempty"`
		PhotoURL    *string `json:"photo_url,omitempty"`
	}
	// body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid JSON body"})
			return
		}
	}

	ctx := c.Request.Context()
	user, err := h.users.Sync(ctx, &domain.SyncUserRequest{
		FirebaseUID: uid,
		Email:       auth.UserEmail(c),
		DisplayName: body.DisplayName,
		PhotoURL:    body.PhotoURL,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to sync user"})
		return
	}

	_ = h.users.RecordLogin(ctx, uid)

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

// UpdateProfile updates the user's profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}

	var req struct {
		DisplayName *string `json:"display_name,omitempty"`
		PhotoURL    *string `json:"photo_url,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body"})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), uid, &domain.UpdateUserRequest{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}
