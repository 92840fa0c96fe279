package moderation

import (
	"context"
	"errors"
	"strings"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

type InboxStore interface {
	FindNotification(ctx context.Context, id string) (*models.Notification, error)
	ListNotifications(ctx context.Context, userEmail string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userEmail string) (int64, error)
	ClearNotifications(ctx context.Context, userEmail string) (int64, error)
}

// Inbox manages the read state of a user's notifications.
type Inbox struct {
	store InboxStore
}

func NewInbox(store InboxStore) *Inbox {
	return &Inbox{store: store}
}

// List returns the notifications of userEmail newest first.
func (in *Inbox) List(ctx context.Context, userEmail string) ([]models.Notification, error) {
	userEmail, err := requireEmail(userEmail)
	if err != nil {
		return nil, err
	}
	list, err := in.store.ListNotifications(ctx, userEmail)
	if err != nil {
		return nil, apperr.Store(err, "failed to list notifications")
	}
	return list, nil
}

func (in *Inbox) Get(ctx context.Context, id string) (*models.Notification, error) {
	n, err := in.store.FindNotification(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("notification not found")
	}
	if err != nil {
		return nil, apperr.Store(err, "failed to load notification")
	}
	return n, nil
}

func (in *Inbox) MarkRead(ctx context.Context, id string) error {
	err := in.store.MarkNotificationRead(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound("notification not found")
	}
	if err != nil {
		return apperr.Store(err, "failed to mark notification as read")
	}
	return nil
}

// MarkAllRead marks every notification of userEmail read and returns how many changed.
func (in *Inbox) MarkAllRead(ctx context.Context, userEmail string) (int64, error) {
	userEmail, err := requireEmail(userEmail)
	if err != nil {
		return 0, err
	}
	n, err := in.store.MarkAllNotificationsRead(ctx, userEmail)
	if err != nil {
		return 0, apperr.Store(err, "failed to mark notifications as read")
	}
	return n, nil
}

// Clear deletes every notification of userEmail and returns how many were removed.
func (in *Inbox) Clear(ctx context.Context, userEmail string) (int64, error) {
	userEmail, err := requireEmail(userEmail)
	if err != nil {
		return 0, err
	}
	n, err := in.store.ClearNotifications(ctx, userEmail)
	if err != nil {
		return 0, apperr.Store(err, "failed to clear notifications")
	}
	return n, nil
}

func requireEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperr.InvalidArgument("email is required")
	}
	return email, nil
}
