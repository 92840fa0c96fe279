package handlers

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
	"github.com/forumx/backend/internal/votes"
)

const (
	defaultPageSize = 5
	maxPageSize     = 100
)

type PostHandler struct {
	store     database.Store
	ledger    *votes.Ledger
	freeLimit int64
}

func NewPostHandler(store database.Store, ledger *votes.Ledger, freeLimit int64) *PostHandler {
	return &PostHandler{store: store, ledger: ledger, freeLimit: freeLimit}
}

// GetPosts returns all posts newest first
func (h *PostHandler) GetPosts(c *gin.Context) {
	posts, err := h.store.ListPosts(c.Request.Context(), database.PostQuery{})
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	c.JSON(http.StatusOK, orEmpty(posts))
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.store.FindPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	c.JSON(http.StatusOK, post)
}

// GetPostDetails returns a post with its comments oldest first
func (h *PostHandler) GetPostDetails(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.store.FindPost(ctx, c.Param("id"))
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	comments, err := h.store.ListComments(ctx, post.ID)
	if err != nil {
		respondError(c, fromStore(err, "Comment"))
		return
	}
	c.JSON(http.StatusOK, models.PostDetails{Post: post, Comments: orEmpty(comments)})
}

// CreatePost creates a new post (PROTECTED - requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
	if !bindJSON(c, &input) {
		return
	}
	if err := requireSelf(c, input.AuthorEmail, "You can only post as yourself"); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	author, err := h.store.FindUserByEmail(ctx, input.AuthorEmail)
	if err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}
	if !author.Membership {
		count, err := h.store.CountPosts(ctx, author.Email)
		if err != nil {
			respondError(c, fromStore(err, "Post"))
			return
		}
		if count >= h.freeLimit {
			respondError(c, apperr.Forbidden("Post limit reached. Become a member to post more."))
			return
		}
	}

	title := sanitizeLine(input.Title)
	if title == "" {
		respondError(c, apperr.InvalidArgument("Title is required"))
		return
	}
	post := models.Post{
		AuthorEmail: author.Email,
		AuthorName:  firstNonEmpty(input.AuthorName, author.Name),
		AuthorPhoto: firstNonEmpty(input.AuthorPhoto, author.Photo),
		Title:       title,
		Body:        sanitizeBody(input.Body),
		Tags:        input.Tags,
	}
	if err := h.store.CreatePost(ctx, &post); err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Post created successfully", "postId": post.ID})
}

// DeletePost deletes a post (PROTECTED - author or admin)
func (h *PostHandler) DeletePost(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.store.FindPost(ctx, c.Param("id"))
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	if err := authorize(c, h.store, post.AuthorEmail); err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.DeletePost(ctx, post.ID); err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// VotePost toggles the caller's vote on a post
func (h *PostHandler) VotePost(c *gin.Context) {
	var input models.VoteRequest
	if !bindJSON(c, &input) {
		return
	}
	if strings.TrimSpace(input.UserEmail) == "" {
		respondError(c, apperr.InvalidArgument("userEmail is required"))
		return
	}
	if err := requireSelf(c, input.UserEmail, "You can only vote as yourself"); err != nil {
		respondError(c, err)
		return
	}

	tally, err := h.ledger.VotePost(c.Request.Context(), c.Param("id"), callerEmail(c), input.VoteType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tally)
}

// GetUserPosts returns all posts by a specific author with their comment counts
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	posts, err := h.store.ListPosts(c.Request.Context(), database.PostQuery{AuthorEmail: c.Param("email")})
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	if err := h.withCommentCounts(c, posts); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(posts))
}

// GetPopularPosts returns all posts ranked by net votes, newest first on ties
func (h *PostHandler) GetPopularPosts(c *gin.Context) {
	posts, err := h.store.ListPosts(c.Request.Context(), database.PostQuery{})
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	if err := h.withCommentCounts(c, posts); err != nil {
		respondError(c, err)
		return
	}
	rankPopular(posts)
	c.JSON(http.StatusOK, orEmpty(posts))
}

// GetPostsPage returns one page of the newest-first listing and the total
func (h *PostHandler) GetPostsPage(c *gin.Context) {
	page, limit := pageParams(c.Param("page"), c.Query("limit"))

	ctx := c.Request.Context()
	posts, err := h.store.ListPosts(ctx, database.PostQuery{Skip: (page - 1) * limit, Limit: limit})
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	total, err := h.store.CountPosts(ctx, "")
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	c.JSON(http.StatusOK, models.PostPage{Posts: orEmpty(posts), Total: total})
}

// GetPostsByTag returns posts with a tag containing the given name
func (h *PostHandler) GetPostsByTag(c *gin.Context) {
	tag := strings.TrimSpace(c.Param("tagName"))
	if tag == "" {
		respondError(c, apperr.InvalidArgument("Tag name is required"))
		return
	}
	posts, err := h.store.ListPosts(c.Request.Context(), database.PostQuery{Tag: tag})
	if err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}
	c.JSON(http.StatusOK, orEmpty(posts))
}

func (h *PostHandler) withCommentCounts(c *gin.Context, posts []models.Post) error {
	ids := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	counts, err := h.store.CountComments(c.Request.Context(), ids)
	if err != nil {
		return fromStore(err, "Comment")
	}
	for i := range posts {
		n := counts[posts[i].ID]
		posts[i].CommentCount = &n
	}
	return nil
}

// rankPopular orders posts by score, then newest first.
func rankPopular(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if si, sj := posts[i].Score(), posts[j].Score(); si != sj {
			return si > sj
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

// pageParams parses a 1-based page number and page size, falling back to the
// first page and the default size. The size is capped at maxPageSize.
func pageParams(rawPage, rawLimit string) (page, limit int64) {
	page, err := strconv.ParseInt(rawPage, 10, 64)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.ParseInt(rawLimit, 10, 64)
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	// Keep (page-1)*limit inside int64.
	page = min(page, math.MaxInt64/limit)
	return page, limit
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// orEmpty makes an empty listing encode as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
