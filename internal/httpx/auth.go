package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/auth"
)

const identityKey = "identity"

// RequireAuth verifies the bearer token and stores the caller's Identity.
func RequireAuth(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			Fail(c, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		id, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			Error(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// OptionalAuth attaches the Identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			if id, err := v.Verify(c.Request.Context(), raw); err == nil {
				c.Set(identityKey, id)
			}
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			Fail(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !id.Is(roles...) {
			Fail(c, http.StatusForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// SetIdentity is used by handlers that authenticate outside RequireAuth.
func SetIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
}
