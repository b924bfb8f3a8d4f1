package middleware

import (
	"net/http"
	"strings"

	"Mobius/services/identity"
	"Mobius/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// IdentityKey is where the resolved identity is stored on the gin context.
const IdentityKey = "identity"

// DeviceHeader carries a bare device id for clients without a token.
const DeviceHeader = "X-Device-ID"

// Identity resolves the caller's identity, in order: a Bearer token, the
// device header, the cookie session. A bad token is rejected; no identity at
// all is left for RequireIdentity to decide.
func Identity(tokens *identity.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			id, err := tokens.Verify(strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				utils.RespondError(c, err)
				return
			}
			c.Set(IdentityKey, id)
			c.Next()
			return
		}

		if id := c.GetHeader(DeviceHeader); identity.Valid(id) {
			c.Set(IdentityKey, strings.TrimSpace(id))
			c.Next()
			return
		}

		if id, err := identity.NewSessionStore(sessions.Default(c)).Load(); err == nil {
			c.Set(IdentityKey, id)
		}
		c.Next()
	}
}

// RequireIdentity aborts requests that carry no identity.
func RequireIdentity(c *gin.Context) {
	if c.GetString(IdentityKey) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "InvalidIdentity"})
		return
	}
	c.Next()
}

// CurrentIdentity returns the identity resolved by Identity.
func CurrentIdentity(c *gin.Context) string {
	return c.GetString(IdentityKey)
}
