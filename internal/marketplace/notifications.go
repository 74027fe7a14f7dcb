package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusgig/internal/bus"
	"campusgig/internal/errors"
	"campusgig/internal/model"
	"campusgig/internal/readcache"
	"campusgig/internal/storage"
)

// NotificationService appends, lists and marks in-app notifications. It does
// no caching of its own: UnreadCount is a point read against the store, and
// the read cache fronting it is invalidated here on every change.
type NotificationService struct {
	store storage.Store
	bus   bus.Bus
	log   *zap.Logger
}

// NewNotificationService returns a configured NotificationService.
func NewNotificationService(store storage.Store, b bus.Bus, log *zap.Logger) *NotificationService {
	return &NotificationService{store: store, bus: b, log: log}
}

// Notify appends an unread notification for userID referencing refID.
func (s *NotificationService) Notify(ctx context.Context, userID, ntype, refID string) error {
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      ntype,
		RefID:     refID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return err
	}
	s.invalidate(ctx, readcache.UnreadKey(userID))
	return nil
}

// MarkRead marks a notification read. Idempotent: marking an already-read
// notification succeeds without publishing anything. Only the owner may mark.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, callerID string) error {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.UserID != callerID {
		return errors.ErrUnauthorized
	}
	if n.IsRead {
		return nil
	}

	if err := s.store.MarkNotificationRead(ctx, notificationID); err != nil {
		return err
	}
	s.invalidate(ctx, readcache.UnreadKey(callerID))
	return nil
}

// UnreadCount returns the number of unread notifications. Pure pass-through:
// it reflects everything committed before the read begins.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// List returns userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}

func (s *NotificationService) invalidate(ctx context.Context, keys ...string) {
	if err := s.bus.Publish(ctx, keys...); err != nil {
		s.log.Warn("publish invalidations failed",
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}
