package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/middleware"
	"github.com/forumx/backend/internal/moderation"
)

type NotificationHandler struct {
	users middleware.RoleLookup
	inbox *moderation.Inbox
}

func NewNotificationHandler(users middleware.RoleLookup, inbox *moderation.Inbox) *NotificationHandler {
	return &NotificationHandler{users: users, inbox: inbox}
}

// GetNotifications returns the notifications of a user newest first
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	email := c.Param("userEmail")
	if err := authorize(c, h.users, email); err != nil {
		respondError(c, err)
		return
	}
	list, err := h.inbox.List(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

// MarkRead marks one notification read (recipient or admin)
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := h.inbox.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := authorize(c, h.users, n.UserEmail); err != nil {
		respondError(c, err)
		return
	}
	if err := h.inbox.MarkRead(ctx, n.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllRead marks every notification of a user read. The route shares its
// wildcard with MarkRead, so the email arrives as "id".
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	email := c.Param("id")
	if err := authorize(c, h.users, email); err != nil {
		respondError(c, err)
		return
	}
	n, err := h.inbox.MarkAllRead(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "modified": n})
}

// ClearAll deletes every notification of a user
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	email := c.Param("email")
	if err := authorize(c, h.users, email); err != nil {
		respondError(c, err)
		return
	}
	n, err := h.inbox.Clear(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications cleared", "deleted": n})
}
