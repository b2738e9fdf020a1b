package middlewares

import (
	"net/http"

	"github.com/geocoder89/idprint/internal/actorctx"
	"github.com/gin-gonic/gin"
)

func RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := actorctx.PrincipalFrom(c.Request.Context())
		if !ok {
			abortUnauthorized(c, "Missing identity context")
			return
		}

		if p.Role != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":      "forbidden",
					"message":   "Forbidden: Only admirals can add points",
					"requestId": c.GetString(CtxRequestID),
				},
			})
			return
		}

		c.Next()
	}
}
