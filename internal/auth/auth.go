package auth

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Service is the login capability the API depends on. Login authenticates the request,
// writing its own rejection response when it returns false; Username reports the identity
// established by Login for the same request.
type Service interface {
	Login(c *gin.Context) bool
	Username(c *gin.Context) (string, bool)
}

type contextKey string

const usernameKey contextKey = "authUsername"

// GetUsername retrieves the authenticated username from a request context.
func GetUsername(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(usernameKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// withUsername stores the identity on both the request context and the gin context.
func withUsername(c *gin.Context, username string) {
	ctx := context.WithValue(c.Request.Context(), usernameKey, username)
	c.Request = c.Request.WithContext(ctx)
	c.Set(string(usernameKey), username)
}

func usernameFromGin(c *gin.Context) (string, bool) {
	if value, ok := c.Get(string(usernameKey)); ok {
		if username, ok := value.(string); ok && username != "" {
			return username, true
		}
	}
	return GetUsername(c.Request.Context())
}

// RequireLogin aborts the request unless svc accepts it.
func RequireLogin(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !svc.Login(c) {
			if !c.IsAborted() {
				unauthorized(c, "authentication required")
			}
			return
		}
		c.Next()
	}
}
