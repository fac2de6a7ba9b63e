package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// NotificationStore is the inbox persistence surface.
type NotificationStore interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*repository.Notification, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkUnread(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// NotificationService exposes the per-user inbox. Rows are created by the
// dispatcher; owners can only read, toggle and delete their own.
type NotificationService struct {
	store NotificationStore
	log   zerolog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(store NotificationStore, log zerolog.Logger) *NotificationService {
	return &NotificationService{store: store, log: log}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor repository.Actor, unreadOnly bool, limit, offset int) ([]*repository.Notification, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListByUser(ctx, actor.ID, unreadOnly, limit, offset)
}

// UnreadCount returns the caller's unread count.
func (s *NotificationService) UnreadCount(ctx context.Context, actor repository.Actor) (int64, error) {
	return s.store.UnreadCount(ctx, actor.ID)
}

// MarkRead marks one of the caller's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, actor repository.Actor, id string) error {
	return s.store.MarkRead(ctx, actor.ID, id)
}

// MarkUnread marks one of the caller's notifications unread.
func (s *NotificationService) MarkUnread(ctx context.Context, actor repository.Actor, id string) error {
	return s.store.MarkUnread(ctx, actor.ID, id)
}

// MarkAllRead marks all the caller's notifications read.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor repository.Actor) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, actor.ID)
	if err == nil && n > 0 {
		s.log.Debug().Str("user_id", actor.ID).Int64("count", n).Msg("Notifications marked read")
	}
	return n, err
}

// Delete removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, actor repository.Actor, id string) error {
	return s.store.Delete(ctx, actor.ID, id)
}

// Clear removes all the caller's notifications.
func (s *NotificationService) Clear(ctx context.Context, actor repository.Actor) (int64, error) {
	return s.store.DeleteAllForUser(ctx, actor.ID)
}
