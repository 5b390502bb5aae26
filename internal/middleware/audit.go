package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/models"
)

const auditResourceIDKey = "audit_resource_id"

type auditRecorder interface {
	Record(ctx context.Context, log *models.AuditLog) error
}

// SetAuditResourceID names the resource a handler created or changed.
func SetAuditResourceID(c *gin.Context, id string) {
	c.Set(auditResourceIDKey, id)
}

// Audit records an audit log after each successful request.
func Audit(recorder auditRecorder, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		actor := models.Actor{IPAddress: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
		if claims := Claims(c); claims != nil {
			actor.UserID = claims.UserID
			actor.Role = claims.Role
		}
		resourceID := c.GetString(auditResourceIDKey)
		if resourceID == "" {
			resourceID = c.Param("id")
		}
		entry := models.NewAuditLog(actor, action, resource, resourceID)
		_ = entry.SetValues(nil, map[string]interface{}{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})

		if err := recorder.Record(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
