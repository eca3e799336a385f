package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/web/session"
)

// RequireRole verifies the caller's token and checks it carries role. The
// claims are stored on the context for the handler.
func RequireRole(verifier TokenVerifier, role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := session.GetBearerOrCookie(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "You must be logged in to view this page."})
			return
		}

		claims, err := verifier.ParseToken(token)
		if err != nil {
			logger.Debug("rejected token:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		if claims.Role != string(role) {
			logger.Warningf("user %d with role %q denied access to %s", claims.ID, claims.Role, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You are not authorized to access this page."})
			return
		}

		session.SetClaims(c, claims)
		c.Next()
	}
}
