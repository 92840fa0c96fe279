package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/middleware"
)

// respondError writes err as {"error": message} with the status of its kind.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apperr.KindOf(err).Status(), gin.H{"error": err.Error()})
}

// fromStore maps a store error about entity to an application error.
func fromStore(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound("%s not found", entity)
	case errors.Is(err, database.ErrConflict):
		return apperr.Conflict("%s was modified concurrently", entity)
	default:
		return apperr.Store(err, "database error")
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, apperr.InvalidArgument("invalid request body: %v", err))
		return false
	}
	return true
}

func callerEmail(c *gin.Context) string {
	if identity, ok := middleware.CurrentIdentity(c); ok {
		return identity.Email
	}
	return ""
}

// authorize allows the request when the caller is owner or an admin.
func authorize(c *gin.Context, users middleware.RoleLookup, owner string) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return apperr.Unauthorized("Unauthorized access")
	}
	if owner = strings.TrimSpace(owner); owner != "" && strings.EqualFold(identity.Email, owner) {
		return nil
	}

	user, err := users.FindUserByEmail(c.Request.Context(), identity.Email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return apperr.Store(err, "failed to load caller")
	}
	if user.IsAdmin() {
		return nil
	}
	return apperr.Forbidden("Forbidden access")
}

// requireSelf allows the request only when the caller is owner.
func requireSelf(c *gin.Context, owner, msg string) error {
	if !strings.EqualFold(callerEmail(c), strings.TrimSpace(owner)) {
		return apperr.Forbidden("%s", msg)
	}
	return nil
}
