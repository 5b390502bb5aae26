package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dispatch-api/internal/middleware"
	"github.com/noah-isme/dispatch-api/internal/models"
)

func actorFromContext(c *gin.Context) models.Actor {
	actor := models.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if claims := middleware.Claims(c); claims != nil {
		actor.UserID = claims.UserID
		actor.Role = claims.Role
	}
	return actor
}
