package middleware

import (
	"tradestream/internal/auth"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// IdentityResolver resolves an Authorization header value.
type IdentityResolver interface {
	ResolveBearer(header string) (*auth.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// identity for downstream handlers.
func RequireAuth(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := resolver.ResolveBearer(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireAuth, or nil.
func IdentityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}
