package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumx/backend/internal/auth"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

const (
	identityKey = "identity"
	userKey     = "user"
)

// RoleLookup resolves the stored account of a verified caller.
type RoleLookup interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// identity in the context.
func AuthMiddleware(verifier auth.Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized access"})
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			logger.Debug("token rejected", zap.Error(err), zap.String("path", c.FullPath()))
			msg := "Invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// AdminOnly lets the request through only when the caller's account has the
// admin role. It must run after AuthMiddleware.
func AdminOnly(users RoleLookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized access"})
			return
		}

		user, err := users.FindUserByEmail(c.Request.Context(), identity.Email)
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden access"})
			return
		case err != nil:
			logger.Error("role lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		case !user.IsAdmin():
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden access"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok
}

// CurrentAdmin returns the account stored by AdminOnly.
func CurrentAdmin(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
