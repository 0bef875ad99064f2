package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type contextKey string

const claimsContextKey contextKey = "grimoireClaims"

// AuthMiddleware validates bearer access tokens and stores their claims on
// the request context.
func AuthMiddleware(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token, err := NormalizeBearerToken(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := tokens.VerifyAccessToken(token)
		if err != nil {
			var mismatch *TokenTypeMismatchError
			if errors.As(err, &mismatch) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": mismatch.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(string(claimsContextKey), claims)
		c.Next()
	}
}

// CurrentUser extracts the authenticated principal from the context.
func CurrentUser(c *gin.Context) (*AccessClaims, bool) {
	value, exists := c.Get(string(claimsContextKey))
	if !exists {
		return nil, false
	}
	claims, ok := value.(*AccessClaims)
	return claims, ok
}
