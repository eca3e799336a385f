package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/web/service"
	"github.com/medreport/medreport/web/session"
)

const loginPath = "/login"

// TokenVerifier checks an access token and returns its claims.
type TokenVerifier interface {
	ParseToken(token string) (*service.Claims, error)
}

// Gate guards the page routes. Visitors of /login and /register who already
// hold a valid token are sent to their dashboard; role areas require a valid
// token whose role owns the area. Other paths pass through untouched.
func Gate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if isAuthPage(path) {
			if claims := verify(verifier, session.GetToken(c)); claims != nil {
				if role, ok := model.ParseRole(claims.Role); ok {
					c.Redirect(http.StatusTemporaryRedirect, role.DashboardPath())
					c.Abort()
					return
				}
			}
			c.Next()
			return
		}

		area, ok := roleArea(path)
		if !ok {
			c.Next()
			return
		}

		claims := verify(verifier, session.GetToken(c))
		if claims == nil {
			c.Redirect(http.StatusTemporaryRedirect, loginPath)
			c.Abort()
			return
		}
		if claims.Role != string(area) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: You are not authorized to access this page."})
			return
		}

		session.SetClaims(c, claims)
		c.Next()
	}
}

func verify(verifier TokenVerifier, token string) *service.Claims {
	if token == "" {
		return nil
	}
	claims, err := verifier.ParseToken(token)
	if err != nil {
		return nil
	}
	return claims
}

func isAuthPage(path string) bool {
	return path == "/login" || path == "/register"
}

// roleArea reports which role owns path, matching whole segments so that
// "/doctors" is not part of the doctor area.
func roleArea(path string) (model.Role, bool) {
	first, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return model.ParseRole(first)
}
