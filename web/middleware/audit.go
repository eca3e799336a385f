package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/web/service"
	"github.com/medreport/medreport/web/session"
)

const auditTargetKey = "AUDIT_TARGET"

type auditTarget struct {
	userID     int
	email      string
	resourceID int
}

// SetAuditTarget names the user and resource of the current request for the
// audit middleware. Handlers call it when the acting user is not known from
// the token, as on login, or to record the affected resource.
func SetAuditTarget(c *gin.Context, userID int, email string, resourceID int) {
	c.Set(auditTargetKey, auditTarget{userID: userID, email: email, resourceID: resourceID})
}

// Audit records action on resource once the handler has succeeded.
func Audit(auditService *service.AuditLogService, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		entry := service.AuditEntry{
			Action:    action,
			Resource:  resource,
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			Details: map[string]any{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"status": c.Writer.Status(),
			},
		}
		if claims := session.GetClaims(c); claims != nil {
			entry.UserID, entry.Email = claims.ID, claims.Email
		}
		if obj, ok := c.Get(auditTargetKey); ok {
			target := obj.(auditTarget)
			if target.userID != 0 {
				entry.UserID, entry.Email = target.userID, target.email
			}
			entry.ResourceID = target.resourceID
		}
		if requestID := c.GetString(requestIDKey); requestID != "" {
			entry.Details["request_id"] = requestID
		}

		if err := auditService.LogAction(entry); err != nil {
			logger.Warning("Failed to log audit action:", err)
		}
	}
}
