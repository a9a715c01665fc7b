package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"github.com/aryanjadon13-code/Technest/internal/domain/identity"
)

const identityContextKey = "technest.identity"

// AuthMiddleware resolves the bearer token into the current user's identity.
// Requests without a valid token pass through anonymously; handlers that
// need a user reject them with requireIdentity.
type AuthMiddleware struct {
	Resolver identity.Resolver
	Logger   *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Resolver == nil {
		c.Next()
		return
	}
	resolved, err := m.Resolver.Resolve(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, identity.ErrUnauthenticated) && m.Logger != nil {
			m.Logger.Debug("token resolution failed", "error", err)
		}
		c.Next()
		return
	}
	c.Set(identityContextKey, resolved)
	c.Next()
}

func currentIdentity(c *gin.Context) (identity.Identity, bool) {
	val, exists := c.Get(identityContextKey)
	if !exists {
		return identity.Identity{}, false
	}
	id, ok := val.(identity.Identity)
	return id, ok && id.Valid()
}

func requireIdentity(c *gin.Context) (identity.Identity, bool) {
	id, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return identity.Identity{}, false
	}
	return id, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
