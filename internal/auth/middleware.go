package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const identityContextKey = "practiceroomIdentity"

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/auth"

// SessionMiddleware resolves the session cookie into an Identity when one is
// present and valid. It never aborts; use RequireAPI or RequirePage for that.
func SessionMiddleware(service *Service, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err == nil && token != "" {
			if identity, err := service.ValidateSession(token); err == nil {
				c.Set(identityContextKey, identity)
			}
		}
		c.Next()
	}
}

// RequireAPI rejects unauthenticated API calls with a JSON error.
func RequireAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
			return
		}
		c.Next()
	}
}

// RequirePage redirects unauthenticated page views to the login page.
func RequirePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentIdentity extracts the authenticated identity from the context.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	if !ok || identity.UID == "" {
		return Identity{}, false
	}
	return identity, true
}
