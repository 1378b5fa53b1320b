package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxEmail       = "email"
)

// UserFirebaseUID extracts the Firebase UID from the Gin context.
// This is set by FirebaseAuthMiddleware (or DevUser in development).
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}

// UserEmail returns the email claim of the signed-in user, if any.
func UserEmail(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxEmail))
}

// SetUser stores the authenticated identity on the Gin context.
func SetUser(c *gin.Context, uid, email string) {
	c.Set(CtxFirebaseUID, uid)
	if email != "" {
		c.Set(CtxEmail, email)
	}
}
