package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally-backend/internal/users/domain"
)

// UserEnsurer creates the account row for a signed-in identity if needed.
type UserEnsurer interface {
	Sync(ctx context.Context, req *domain.SyncUserRequest) (*domain.User, error)
}

// WithUser makes sure every authenticated request has a matching user record,
// so the first sign-in creates it even if the client never calls /auth/sync.
// Must run after the auth middleware.
func WithUser(users UserEnsurer) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserFirebaseUID(c)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
			c.Abort()
			return
		}

		if _, err := users.Sync(c.Request.Context(), &domain.SyncUserRequest{
			FirebaseUID: uid,
			Email:       UserEmail(c),
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to load user"})
			c.Abort()
			return
		}

		c.Next()
	}
}
