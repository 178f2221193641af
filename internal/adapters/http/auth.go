package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// BearerIdentityMiddleware resolves the handshake credential to an identity
// and stores it on the request context. The credential comes from the
// Authorization header, or from the "token" query parameter for browser
// WebSocket clients that cannot set headers.
func BearerIdentityMiddleware(resolver core.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credential"})
			return
		}
		identity, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}
		c.Set("identity", string(identity))
		c.Next()
	}
}

// TokenIdentityResolver is the development resolver: the bearer token is
// taken as the identity itself. Production plugs the auth service in here.
type TokenIdentityResolver struct{}

func (TokenIdentityResolver) Resolve(_ context.Context, token string) (domain.Identity, error) {
	return domain.NewIdentity(token)
}
