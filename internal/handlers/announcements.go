package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/middleware"
	"github.com/forumx/backend/internal/models"
)

type AnnouncementHandler struct {
	store database.Store
}

func NewAnnouncementHandler(store database.Store) *AnnouncementHandler {
	return &AnnouncementHandler{store: store}
}

// CreateAnnouncement publishes an announcement signed by the calling admin
func (h *AnnouncementHandler) CreateAnnouncement(c *gin.Context) {
	var input models.AnnouncementRequest
	if !bindJSON(c, &input) {
		return
	}

	a := models.Announcement{
		Title:       sanitizeLine(input.Title),
		Description: sanitizeBody(input.Description),
		AuthorEmail: callerEmail(c),
		AuthorName:  input.AuthorName,
		AuthorPhoto: input.AuthorPhoto,
	}
	if admin, ok := middleware.CurrentAdmin(c); ok {
		a.AuthorName = firstNonEmpty(input.AuthorName, admin.Name)
		a.AuthorPhoto = firstNonEmpty(input.AuthorPhoto, admin.Photo)
	}
	if a.Title == "" {
		respondError(c, apperr.InvalidArgument("Title is required"))
		return
	}

	if err := h.store.CreateAnnouncement(c.Request.Context(), &a); err != nil {
		respondError(c, fromStore(err, "Announcement"))
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetAnnouncements returns all announcements newest first
func (h *AnnouncementHandler) GetAnnouncements(c *gin.Context) {
	list, err := h.store.ListAnnouncements(c.Request.Context())
	if err != nil {
		respondError(c, fromStore(err, "Announcement"))
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

func (h *AnnouncementHandler) CountAnnouncements(c *gin.Context) {
	n, err := h.store.CountAnnouncements(c.Request.Context())
	if err != nil {
		respondError(c, fromStore(err, "Announcement"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// UpdateAnnouncement replaces the title and description (admin)
func (h *AnnouncementHandler) UpdateAnnouncement(c *gin.Context) {
	var input models.AnnouncementRequest
	if !bindJSON(c, &input) {
		return
	}
	title, description := sanitizeLine(input.Title), sanitizeBody(input.Description)
	if title == "" || strings.TrimSpace(description) == "" {
		respondError(c, apperr.InvalidArgument("Title and description are required"))
		return
	}

	if err := h.store.UpdateAnnouncement(c.Request.Context(), c.Param("id"), title, description); err != nil {
		respondError(c, fromStore(err, "Announcement"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Announcement updated successfully"})
}

// DeleteAnnouncement removes an announcement (admin)
func (h *AnnouncementHandler) DeleteAnnouncement(c *gin.Context) {
	if err := h.store.DeleteAnnouncement(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, fromStore(err, "Announcement"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Announcement deleted successfully"})
}
