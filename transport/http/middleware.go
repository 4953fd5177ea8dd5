package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/presence/ports"
)

// PresenceMiddleware creates middleware that validates presence tokens
func PresenceMiddleware(tokenizer ports.Tokenizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		if len(auth) < 8 || auth[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		grant, err := tokenizer.VerifyPresenceToken(auth[7:])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid presence token"})
			return
		}

		c.Set("userID", grant.UserID)
		c.Set("walletAddress", grant.WalletAddress)

		c.Next()
	}
}
