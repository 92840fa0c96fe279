package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

const tagSearchLimit = 10

type TagHandler struct {
	store database.Store
}

func NewTagHandler(store database.Store) *TagHandler {
	return &TagHandler{store: store}
}

// AddTags stores the tags that do not exist yet
func (h *TagHandler) AddTags(c *gin.Context) {
	var input models.AddTagsRequest
	if !bindJSON(c, &input) {
		return
	}
	added, err := h.store.EnsureTags(c.Request.Context(), input.Tags)
	if err != nil {
		respondError(c, fromStore(err, "Tag"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Tags added successfully", "added": added})
}

func (h *TagHandler) GetTags(c *gin.Context) {
	tags, err := h.store.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, fromStore(err, "Tag"))
		return
	}
	c.JSON(http.StatusOK, orEmpty(tags))
}

// SearchTags returns up to ten tags whose name contains ?q
func (h *TagHandler) SearchTags(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, []models.Tag{})
		return
	}
	tags, err := h.store.SearchTags(c.Request.Context(), q, tagSearchLimit)
	if err != nil {
		respondError(c, fromStore(err, "Tag"))
		return
	}
	c.JSON(http.StatusOK, orEmpty(tags))
}

// GetTagCounts returns every tag used by a post with its number of posts
func (h *TagHandler) GetTagCounts(c *gin.Context) {
	counts, err := h.store.TagCounts(c.Request.Context())
	if err != nil {
		respondError(c, fromStore(err, "Tag"))
		return
	}
	c.JSON(http.StatusOK, orEmpty(counts))
}

// DeleteTag removes a tag (admin)
func (h *TagHandler) DeleteTag(c *gin.Context) {
	if err := h.store.DeleteTag(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, fromStore(err, "Tag"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted successfully"})
}
