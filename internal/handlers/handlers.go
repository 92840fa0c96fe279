package handlers

import (
	"go.uber.org/zap"

	"github.com/forumx/backend/internal/config"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/moderation"
	"github.com/forumx/backend/internal/payments"
	"github.com/forumx/backend/internal/votes"
)

// Handler combines all handler types
type Handler struct {
	User         *UserHandler
	Post         *PostHandler
	Comment      *CommentHandler
	Moderation   *ModerationHandler
	Notification *NotificationHandler
	Tag          *TagHandler
	Announcement *AnnouncementHandler
	Payment      *PaymentHandler
	Stats        *StatsHandler
}

// NewHandler creates a unified handler with all sub-handlers. gateway may be
// nil, in which case the payment endpoints answer 503.
func NewHandler(cfg *config.Config, store database.Store, gateway payments.Gateway, logger *zap.Logger) *Handler {
	ledger := votes.NewLedger(store, logger.Named("votes"))
	pipeline := moderation.NewPipeline(store, logger.Named("moderation"))
	plan := payments.Plan{Price: cfg.Payments.Price, Currency: cfg.Payments.Currency}

	return &Handler{
		User:         NewUserHandler(store),
		Post:         NewPostHandler(store, ledger, cfg.FreePostLimit),
		Comment:      NewCommentHandler(store, ledger, pipeline),
		Moderation:   NewModerationHandler(pipeline),
		Notification: NewNotificationHandler(store, moderation.NewInbox(store)),
		Tag:          NewTagHandler(store),
		Announcement: NewAnnouncementHandler(store),
		Payment:      NewPaymentHandler(store, gateway, plan, logger.Named("payments")),
		Stats:        NewStatsHandler(store),
	}
}
