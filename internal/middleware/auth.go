package middleware

import (
	"errors"
	"net/http"
	"strings"

	"account-directory/internal/models"
	"account-directory/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userKey    = "authUser"
	sessionKey = "authSession"
)

// Authenticate resolves the bearer token to a live session and its user
// and stores both on the request context.
func Authenticate(auth service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header required."})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header format must be Bearer <token>."})
			return
		}

		user, session, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, models.ErrInvalidCredentials) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired credentials."})
				return
			}
			logger.Error("authentication failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "An internal server error occurred."})
			return
		}

		WithPrincipal(c, user, session)
		c.Next()
	}
}

// WithPrincipal stores the authenticated user and session on the request
// context. Authenticate calls it; tests can call it directly.
func WithPrincipal(c *gin.Context, user *models.User, session *models.Session) {
	c.Set(userKey, user)
	c.Set(sessionKey, session)
}

// RequireRole terminates the request unless the caller holds one of the
// given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Permission denied to this resource."})
			return
		}
		c.Next()
	}
}

// RequireAdminGroup terminates the request unless the caller's admin role
// belongs to the given admin group.
func RequireAdminGroup(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.InAdminGroup(group) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Permission denied to this resource."})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside an
// authenticated request.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentSession returns the session behind the request's credentials.
func CurrentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*models.Session)
	return session
}
