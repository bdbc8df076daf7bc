package middleware

import (
	"strings"

	"github.com/campusride/campusride-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		// First try to get token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// If not found in header, try query parameter (for WebSocket and SSE)
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "Authorization header or token query parameter required", "kind": "unauthorized"})
			return
		}

		token, err := utils.ValidateToken(tokenString, secret)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(401, gin.H{"error": "Invalid token", "kind": "unauthorized"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(401, gin.H{"error": "Invalid token claims", "kind": "unauthorized"})
			return
		}

		identity, err := utils.IdentityFromClaims(claims)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "Invalid token claims", "kind": "unauthorized"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// SetIdentity stores identity on the context the way AuthMiddleware does.
func SetIdentity(c *gin.Context, identity utils.Identity) {
	c.Set(identityKey, identity)
}

// Identity returns the caller set by AuthMiddleware.
func Identity(c *gin.Context) (utils.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return utils.Identity{}, false
	}
	id, ok := v.(utils.Identity)
	return id, ok
}
