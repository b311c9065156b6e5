package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/llmsim/llmsim/internal/apierr"
	"github.com/llmsim/llmsim/internal/config"
)

// identityKey is the gin context key for the resolved identity.
const identityKey = "auth_identity"

// Identity is the resolved caller attached to the request context.
type Identity struct {
	ID        string      `json:"id"`
	Role      config.Role `json:"role"`
	Tier      config.Tier `json:"tier"`
	Anonymous bool        `json:"anonymous"`
}

// AnonymousIdentity returns the identity used for unauthenticated requests.
func AnonymousIdentity() Identity {
	return Identity{
		ID:        "anonymous",
		Role:      config.RoleReadonly,
		Tier:      config.TierStandard,
		Anonymous: true,
	}
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == config.RoleAdmin
}

// IdentityFrom reads the identity set by the auth middleware, falling back
// to anonymous.
func IdentityFrom(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return AnonymousIdentity()
}

// ExtractAPIKey pulls the bearer key from the request headers. Accepted
// forms, in order: "Authorization: Bearer X", "Authorization: bearer X",
// and a bare "X-Api-Key: X".
func ExtractAPIKey(h http.Header) (string, bool) {
	auth := h.Get("Authorization")
	if auth == "" {
		auth = h.Get("X-Api-Key")
	}
	if auth == "" {
		return "", false
	}
	switch {
	case strings.HasPrefix(auth, "Bearer "):
		return strings.TrimPrefix(auth, "Bearer "), true
	case strings.HasPrefix(auth, "bearer "):
		return strings.TrimPrefix(auth, "bearer "), true
	case !strings.Contains(auth, " "):
		return auth, true
	default:
		return "", false
	}
}

// healthPaths may skip authentication when anonymous health is allowed.
var healthPaths = map[string]struct{}{
	"/":        {},
	"/health":  {},
	"/healthz": {},
	"/ready":   {},
	"/readyz":  {},
	"/metrics": {},
	"/version": {},
}

// IsHealthEndpoint reports whether the path is exempt from auth.
func IsHealthEndpoint(path string) bool {
	_, ok := healthPaths[path]
	return ok
}

// IsAdminEndpoint reports whether the path is behind the admin gate.
func IsAdminEndpoint(path string) bool {
	return strings.HasPrefix(path, "/admin")
}

// keyPrefix truncates a key for logging; only the first eight characters
// may appear in logs.
func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// AuthMiddleware resolves the caller identity. Health endpoints pass through
// anonymously when permitted; with auth disabled every request is anonymous.
func AuthMiddleware(cfg config.APIKeyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if cfg.AllowAnonymousHealth && IsHealthEndpoint(path) {
			c.Set(identityKey, AnonymousIdentity())
			c.Next()
			return
		}

		if !cfg.Enabled {
			c.Set(identityKey, AnonymousIdentity())
			c.Next()
			return
		}

		key, ok := ExtractAPIKey(c.Request.Header)
		if !ok {
			var err *apierr.Error
			if c.GetHeader("Authorization") == "" && c.GetHeader("X-Api-Key") == "" {
				err = apierr.Authentication("Missing Authorization header. Use 'Authorization: Bearer <api-key>'")
			} else {
				err = apierr.Authentication("Invalid Authorization format. Use 'Bearer <api-key>'")
			}
			c.AbortWithStatusJSON(err.StatusCode(), err.ToResponse())
			return
		}

		entry, found := cfg.FindKey(key)
		if !found {
			log.WithFields(log.Fields{
				"key_prefix": keyPrefix(key),
				"path":       path,
			}).Warn("invalid API key attempt")
			err := apierr.Authentication("Invalid API key")
			c.AbortWithStatusJSON(err.StatusCode(), err.ToResponse())
			return
		}

		if !entry.Enabled {
			log.WithFields(log.Fields{
				"key_id": entry.ID,
				"path":   path,
			}).Warn("disabled API key used")
			err := apierr.Authentication("API key is disabled")
			c.AbortWithStatusJSON(err.StatusCode(), err.ToResponse())
			return
		}

		c.Set(identityKey, Identity{
			ID:   entry.ID,
			Role: entry.Role,
			Tier: entry.Tier,
		})
		c.Next()
	}
}

// AdminGateMiddleware enforces the admin role on /admin paths. It must run
// after AuthMiddleware.
func AdminGateMiddleware(cfg config.AdminConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !IsAdminEndpoint(path) || !cfg.RequireAdminKey {
			c.Next()
			return
		}

		identity := IdentityFrom(c)
		if !identity.IsAdmin() {
			log.WithFields(log.Fields{
				"key_id": identity.ID,
				"role":   identity.Role,
				"path":   path,
			}).Warn("non-admin access attempt to admin endpoint")
			err := apierr.Permission("Insufficient permissions")
			c.AbortWithStatusJSON(err.StatusCode(), err.ToResponse())
			return
		}

		if cfg.LogAccess {
			log.WithFields(log.Fields{
				"key_id": identity.ID,
				"path":   path,
			}).Info("admin endpoint accessed")
		}
		c.Next()
	}
}
