package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/icedoutskay/grainlify/pkg/ctxkeys"
)

// JWTAuthMiddleware validates Bearer session tokens. Browser clients may send
// the token in the access_token cookie instead.
func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			if cookieToken, err := c.Cookie("access_token"); err == nil && cookieToken != "" {
				auth = "Bearer " + cookieToken
			} else {
				abortUnauthenticated(c, "No authorization header")
				return
			}
		}

		// Extract Bearer token
		parts := strings.Split(auth, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			abortUnauthenticated(c, "Invalid authorization header")
			return
		}
		token := parts[1]

		claims, err := ValidateJWT(token, secret)
		if err != nil {
			abortUnauthenticated(c, err.Error())
			return
		}

		c.Set(string(ctxkeys.KeyUserID), claims.UserID)
		c.Set(string(ctxkeys.KeyRole), claims.Role)
		c.Set(string(ctxkeys.KeyWalletType), string(claims.WalletType))
		c.Set(string(ctxkeys.KeyWalletAddr), claims.Address)
		c.Set(string(ctxkeys.KeyJWTExpiresAt), claims.ExpiresAt.Time)

		ctx := context.WithValue(c.Request.Context(), ctxkeys.KeyUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxkeys.KeyRole, claims.Role)
		ctx = context.WithValue(ctx, ctxkeys.KeyWalletType, string(claims.WalletType))
		ctx = context.WithValue(ctx, ctxkeys.KeyWalletAddr, claims.Address)
		ctx = context.WithValue(ctx, ctxkeys.KeyJWTExpiresAt, claims.ExpiresAt.Time)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthenticated",
		"message": message,
	})
}
