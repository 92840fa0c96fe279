// Package moderation runs comment reports from submission to admin resolution
// and keeps the report notifications of users.
package moderation

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

// Store is the part of the content store the pipeline needs.
type Store interface {
	FindComment(ctx context.Context, id string) (*models.Comment, error)
	FindComments(ctx context.Context, ids []string) (map[string]*models.Comment, error)
	MarkCommentReported(ctx context.Context, id string) error
	DeleteComment(ctx context.Context, id string) error

	InsertReport(ctx context.Context, r *models.Report) (bool, error)
	FindReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context) ([]models.Report, error)
	TransitionReport(ctx context.Context, id string, from, to models.ReportStatus) error

	InsertNotification(ctx context.Context, n *models.Notification) (bool, error)
}

// Pipeline files comment reports and runs admin actions against them.
type Pipeline struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewPipeline creates a pipeline stamping records with the current UTC time.
func NewPipeline(store Store, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type ReportRequest struct {
	CommentID     string
	ReporterEmail string
	Reason        string
	// IdempotencyKey makes a retried request reuse the report and
	// notification of the first attempt. A random key is used when empty.
	IdempotencyKey string
}

// Receipt identifies what a report request wrote.
type Receipt struct {
	ReportID       string
	NotificationID string
	// Replayed is set when an earlier attempt with the same key had already
	// recorded the report.
	Replayed bool
}

// ReportMessage is the notification text sent to the author of a reported comment.
func ReportMessage(reason string) string {
	return fmt.Sprintf("Your comment has been reported for: \"%s\"", reason)
}

// ReportComment flags the comment, files a pending report and notifies the
// comment's author. Each step is idempotent under the request's key, so a
// failed request can be retried as a whole. Completed steps are not undone
// when a later one fails.
func (p *Pipeline) ReportComment(ctx context.Context, req ReportRequest) (*Receipt, error) {
	req.ReporterEmail = strings.TrimSpace(req.ReporterEmail)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ReporterEmail == "" {
		return nil, apperr.InvalidArgument("userEmail is required")
	}
	if req.Reason == "" {
		return nil, apperr.InvalidArgument("reason is required")
	}

	comment, err := p.store.FindComment(ctx, req.CommentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("comment not found")
	}
	if err != nil {
		return nil, apperr.Store(err, "failed to load comment")
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	receipt := &Receipt{
		ReportID:       sagaID("report", req.CommentID, req.ReporterEmail, key),
		NotificationID: sagaID("notification", req.CommentID, req.ReporterEmail, key),
	}
	log := p.logger.With(
		zap.String("comment_id", req.CommentID),
		zap.String("report_id", receipt.ReportID),
	)

	if err := p.store.MarkCommentReported(ctx, req.CommentID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("comment not found")
		}
		log.Error("report step failed", zap.String("step", "mark_reported"), zap.Error(err))
		return nil, apperr.Store(err, "failed to mark comment as reported")
	}

	now := p.now()
	created, err := p.store.InsertReport(ctx, &models.Report{
		ID:         receipt.ReportID,
		CommentID:  req.CommentID,
		ReportedBy: req.ReporterEmail,
		Reason:     req.Reason,
		Status:     models.ReportPending,
		Date:       now,
	})
	if err != nil {
		log.Error("report step failed", zap.String("step", "insert_report"), zap.Error(err))
		return nil, apperr.Store(err, "failed to record report")
	}
	receipt.Replayed = !created

	_, err = p.store.InsertNotification(ctx, &models.Notification{
		ID:        receipt.NotificationID,
		UserEmail: comment.UserEmail,
		Message:   ReportMessage(req.Reason),
		Kind:      models.NotificationCommentReported,
		Date:      now,
	})
	if err != nil {
		log.Error("report step failed", zap.String("step", "notify_author"), zap.Error(err))
		return nil, apperr.Store(err, "failed to notify comment author")
	}

	log.Info("comment reported", zap.Bool("replayed", receipt.Replayed))
	return receipt, nil
}

// targetStatus maps an admin action to the report status it produces.
func targetStatus(action models.ReportAction) (models.ReportStatus, bool) {
	switch action {
	case models.ActionReviewed:
		return models.ReportReviewed, true
	case models.ActionDeleteComment, models.ActionWarnUser:
		return models.ReportActionTaken, true
	case models.ActionDismiss:
		return models.ReportDismissed, true
	default:
		return "", false
	}
}

// CanTransition reports whether a report in status from may move to status to.
// Staying in the same status is always allowed.
func CanTransition(from, to models.ReportStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.ReportPending:
		return to == models.ReportReviewed || to == models.ReportActionTaken || to == models.ReportDismissed
	case models.ReportReviewed:
		return to == models.ReportActionTaken || to == models.ReportDismissed
	default:
		return false
	}
}

// ResolveReport applies an admin action to a report.
func (p *Pipeline) ResolveReport(ctx context.Context, reportID string, action models.ReportAction) (*models.Report, error) {
	target, ok := targetStatus(action)
	if !ok {
		return nil, apperr.InvalidArgument("unknown action %q", action)
	}

	report, err := p.store.FindReport(ctx, reportID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("report not found")
	}
	if err != nil {
		return nil, apperr.Store(err, "failed to load report")
	}

	if !CanTransition(report.Status, target) {
		return nil, apperr.Conflict("report is already %s", report.Status)
	}

	if action == models.ActionDeleteComment {
		err := p.store.DeleteComment(ctx, report.CommentID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Store(err, "failed to delete comment")
		}
	}

	if report.Status != target {
		err := p.store.TransitionReport(ctx, reportID, report.Status, target)
		switch {
		case errors.Is(err, database.ErrConflict):
			return nil, apperr.Conflict("report was resolved concurrently")
		case errors.Is(err, database.ErrNotFound):
			return nil, apperr.NotFound("report not found")
		case err != nil:
			return nil, apperr.Store(err, "failed to update report")
		}
		now := p.now()
		report.Status = target
		report.UpdatedAt = &now
	}

	p.logger.Info("report resolved",
		zap.String("report_id", reportID),
		zap.String("action", string(action)),
		zap.String("status", string(report.Status)),
	)
	return report, nil
}

// Reports returns the report queue newest first, each with its comment
// resolved. The comment is nil when it no longer exists.
func (p *Pipeline) Reports(ctx context.Context) ([]models.ReportView, error) {
	reports, err := p.store.ListReports(ctx)
	if err != nil {
		return nil, apperr.Store(err, "failed to list reports")
	}

	ids := make([]string, 0, len(reports))
	seen := make(map[string]bool, len(reports))
	for _, r := range reports {
		if !seen[r.CommentID] {
			seen[r.CommentID] = true
			ids = append(ids, r.CommentID)
		}
	}
	comments, err := p.store.FindComments(ctx, ids)
	if err != nil {
		return nil, apperr.Store(err, "failed to load reported comments")
	}

	views := make([]models.ReportView, len(reports))
	for i, r := range reports {
		views[i] = models.ReportView{
			ID:         r.ID,
			Comment:    comments[r.CommentID],
			ReportedBy: r.ReportedBy,
			Reason:     r.Reason,
			Status:     r.Status,
			Date:       r.Date,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return views, nil
}

// sagaID derives a stable document id for one step of a report request.
func sagaID(step, commentID, reporter, key string) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{step, commentID, reporter, key} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}
