// Package session carries the access token between the browser and the
// server and exposes the verified claims to handlers.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/web/service"
)

const (
	CookieName = "accessToken"
	claimsKey  = "CLAIMS"
)

// SetAccessToken stores token in the HttpOnly access cookie.
func SetAccessToken(c *gin.Context, token string, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearAccessToken expires the access cookie.
func ClearAccessToken(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}

// GetToken returns the access token, preferring the cookie over the
// Authorization header. Page requests come from browsers.
func GetToken(c *gin.Context) string {
	if token := cookieToken(c); token != "" {
		return token
	}
	return bearerToken(c)
}

// GetBearerOrCookie returns the access token, preferring the Authorization
// header over the cookie. API requests usually come from scripts.
func GetBearerOrCookie(c *gin.Context) string {
	if token := bearerToken(c); token != "" {
		return token
	}
	return cookieToken(c)
}

func cookieToken(c *gin.Context) string {
	token, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return token
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func SetClaims(c *gin.Context, claims *service.Claims) {
	c.Set(claimsKey, claims)
}

// GetClaims returns the claims stored by the auth middleware, or nil.
func GetClaims(c *gin.Context) *service.Claims {
	if obj, ok := c.Get(claimsKey); ok {
		if claims, ok := obj.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}
