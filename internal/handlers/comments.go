package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
	"github.com/forumx/backend/internal/moderation"
	"github.com/forumx/backend/internal/votes"
)

// IdempotencyKeyHeader lets clients retry a report without filing it twice.
const IdempotencyKeyHeader = "Idempotency-Key"

type CommentHandler struct {
	store    database.Store
	ledger   *votes.Ledger
	pipeline *moderation.Pipeline
}

func NewCommentHandler(store database.Store, ledger *votes.Ledger, pipeline *moderation.Pipeline) *CommentHandler {
	return &CommentHandler{store: store, ledger: ledger, pipeline: pipeline}
}

// GetComments returns all comments of the post given by ?postId oldest first
func (h *CommentHandler) GetComments(c *gin.Context) {
	postID := strings.TrimSpace(c.Query("postId"))
	if postID == "" {
		respondError(c, apperr.InvalidArgument("postId is required"))
		return
	}
	comments, err := h.store.ListComments(c.Request.Context(), postID)
	if err != nil {
		respondError(c, fromStore(err, "Comment"))
		return
	}
	c.JSON(http.StatusOK, orEmpty(comments))
}

// CreateComment adds a comment or a reply to a post
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var input models.CreateCommentRequest
	if !bindJSON(c, &input) {
		return
	}
	if err := requireSelf(c, input.UserEmail, "You can only comment as yourself"); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.FindPost(ctx, input.PostID); err != nil {
		respondError(c, fromStore(err, "Post"))
		return
	}

	var parentID *string
	if input.ParentID != nil && strings.TrimSpace(*input.ParentID) != "" {
		parent, err := h.store.FindComment(ctx, *input.ParentID)
		if err != nil {
			respondError(c, fromStore(err, "Parent comment"))
			return
		}
		if parent.PostID != input.PostID {
			respondError(c, apperr.InvalidArgument("Parent comment belongs to another post"))
			return
		}
		parentID = &parent.ID
	}

	text := sanitizeLine(input.Text)
	if text == "" {
		respondError(c, apperr.InvalidArgument("Text is required"))
		return
	}
	comment := models.Comment{
		PostID:    input.PostID,
		ParentID:  parentID,
		Text:      text,
		UserEmail: callerEmail(c),
		UserName:  input.UserName,
		UserPhoto: input.UserPhoto,
	}
	if err := h.store.CreateComment(ctx, &comment); err != nil {
		respondError(c, fromStore(err, "Comment"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Comment added", "commentId": comment.ID})
}

// VoteComment toggles the caller's vote on a comment
func (h *CommentHandler) VoteComment(c *gin.Context) {
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

	tally, err := h.ledger.VoteComment(c.Request.Context(), c.Param("id"), callerEmail(c), input.VoteType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tally)
}

// ReportComment files a report against a comment and notifies its author
func (h *CommentHandler) ReportComment(c *gin.Context) {
	var input models.ReportCommentRequest
	if !bindJSON(c, &input) {
		return
	}
	if err := requireSelf(c, input.UserEmail, "You can only report as yourself"); err != nil {
		respondError(c, err)
		return
	}

	receipt, err := h.pipeline.ReportComment(c.Request.Context(), moderation.ReportRequest{
		CommentID:      c.Param("id"),
		ReporterEmail:  callerEmail(c),
		Reason:         input.Reason,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Comment reported and notification sent successfully",
		"reportId": receipt.ReportID,
	})
}

// UpdateComment edits the text of the caller's own comment
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	var input models.UpdateCommentRequest
	if !bindJSON(c, &input) {
		return
	}

	ctx := c.Request.Context()
	comment, err := h.store.FindComment(ctx, c.Param("id"))
	if err != nil {
		respondError(c, fromStore(err, "Comment"))
		return
	}
	if err := requireSelf(c, comment.UserEmail, "You can only edit your own comment"); err != nil {
		respondError(c, err)
		return
	}

	text := sanitizeLine(input.Text)
	if text == "" {
		respondError(c, apperr.InvalidArgument("Text is required"))
		return
	}
	if err := h.store.UpdateCommentText(ctx, comment.ID, text); err != nil {
		respondError(c, fromStore(err, "Comment"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment updated successfully"})
}

// DeleteComment deletes a comment (PROTECTED - author or admin)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	ctx := c.Request.Context()
	comment, err := h.store.FindComment(ctx, c.Param("id"))
	if err != nil {
		respondError(c, fromStore(err, "Comment"))
		return
	}
	if err := authorize(c, h.store, comment.UserEmail); err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.DeleteComment(ctx, comment.ID); err != nil {
		respondError(c, fromStore(err, "Comment"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
