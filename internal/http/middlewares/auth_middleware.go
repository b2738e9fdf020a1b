package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/idprint/internal/actorctx"
	"github.com/geocoder89/idprint/internal/auth"
	"github.com/gin-gonic/gin"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

// RequireAuth resolves the bearer token into an actorctx.Principal on the
// request context. Downstream code reads identity from there only.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil || claims.UserID == "" {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		p := actorctx.Principal{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}
		c.Request = c.Request.WithContext(actorctx.WithPrincipal(c.Request.Context(), p))
		c.Set(CtxUserID, p.UserID)

		c.Next()
	}
}
