package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/middleware"
	"github.com/forumx/backend/internal/models"
)

type UserHandler struct {
	store database.Store
}

func NewUserHandler(store database.Store) *UserHandler {
	return &UserHandler{store: store}
}

// UpsertUser records the caller after sign-in, creating the account on first
// login and refreshing last_login afterwards.
func (h *UserHandler) UpsertUser(c *gin.Context) {
	var input models.UpsertUserRequest
	if !bindJSON(c, &input) {
		return
	}
	if err := requireSelf(c, input.Email, "You can only register yourself"); err != nil {
		respondError(c, err)
		return
	}

	user := models.User{
		UID:   input.UID,
		Email: callerEmail(c),
		Name:  strings.TrimSpace(input.Name),
		Photo: strings.TrimSpace(input.Photo),
	}
	if identity, ok := middleware.CurrentIdentity(c); ok && user.UID == "" {
		user.UID = identity.UID
	}

	created, err := h.store.UpsertUser(c.Request.Context(), &user)
	if err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"message": "User exists, last_login updated", "updated": true})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created", "userId": user.ID})
}

// GetUser returns a user's profile by email
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.store.FindUserByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUserProfile changes the name or photo of a user (self or admin)
func (h *UserHandler) UpdateUserProfile(c *gin.Context) {
	email := c.Param("email")
	if err := authorize(c, h.store, email); err != nil {
		respondError(c, err)
		return
	}

	var input models.UpdateProfileRequest
	if !bindJSON(c, &input) {
		return
	}
	if err := h.store.UpdateUserProfile(c.Request.Context(), email, input); err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully"})
}

// ListUsers returns all users, optionally filtered by ?search on the name (admin)
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}
	c.JSON(http.StatusOK, orEmpty(users))
}

// ToggleRole switches a user between the user and admin roles (admin)
func (h *UserHandler) ToggleRole(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.store.FindUserByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}

	role := models.RoleAdmin
	if user.IsAdmin() {
		role = models.RoleUser
	}
	if err := h.store.SetUserRole(ctx, user.ID, role); err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("User role updated to %s", role), "role": role})
}
