package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DevUser trusts the X-User-Id / X-User-Email headers instead of a Firebase
// token. Use this ONLY for local development without Firebase credentials.
func DevUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing X-User-Id"})
			c.Abort()
			return
		}
		SetUser(c, uid, strings.TrimSpace(c.GetHeader("X-User-Email")))
		c.Next()
	}
}
