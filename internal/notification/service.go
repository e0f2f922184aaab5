// Package notification stores in-app notifications and pushes them to the
// recipient's devices.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/metrics"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/push"
	"github.com/dailydrop/server/internal/repo"
)

// Pusher delivers a notification to device tokens
type Pusher interface {
	Send(ctx context.Context, tokens []string, n push.Notification) error
}

type Service struct {
	notifications repo.NotificationRepo
	users         repo.UserRepo
	pusher        Pusher
	logger        *slog.Logger
}

func NewService(notifications repo.NotificationRepo, users repo.UserRepo, pusher Pusher, logger *slog.Logger) *Service {
	return &Service{notifications: notifications, users: users, pusher: pusher, logger: logger}
}

// Create stores n and pushes it unless the recipient opted out of its type.
// Push failures are logged and never fail the call.
func (s *Service) Create(ctx context.Context, n *model.Notification) error {
	if err := s.notifications.Create(ctx, n); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if user.NotificationDisabled(n.Type) || len(user.DeviceIDs) == 0 {
		return nil
	}

	data := map[string]any{"notificationId": n.ID.String(), "type": string(n.Type)}
	if n.DataID != nil {
		data["dataId"] = *n.DataID
	}
	if err := s.pusher.Send(ctx, user.DeviceIDs, push.Notification{Title: n.Title, Body: n.Body, Data: data}); err != nil {
		metrics.PushFailuresTotal.Inc()
		s.logger.WarnContext(ctx, "push failed",
			slog.String("user_id", n.UserID.String()),
			slog.String("type", string(n.Type)),
			slog.Any("error", err),
		)
	}
	return nil
}

// List returns the user's notifications, newest first, optionally of one type
func (s *Service) List(ctx context.Context, userID uuid.UUID, typ *model.NotificationType) ([]model.Notification, error) {
	return s.notifications.List(ctx, userID, typ)
}

// CountUnread is shown as a badge next to the profile
func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.notifications.CountUnread(ctx, userID)
}
