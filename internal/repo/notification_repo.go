package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/model"
)

// NotificationRepo persists in-app notifications
type NotificationRepo interface {
	Create(ctx context.Context, n *model.Notification) error
	// List returns the user's notifications newest first; a nil typ lists all types.
	List(ctx context.Context, userID uuid.UUID, typ *model.NotificationType) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

type notificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) NotificationRepo {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	var dataType *string
	if n.DataType != nil {
		s := string(*n.DataType)
		dataType = &s
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, title, body, type, data_id, data_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, read, created_at, updated_at
	`, n.UserID, n.Title, n.Body, string(n.Type), n.DataID, dataType).
		Scan(&n.ID, &n.Read, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", mapWriteError(err, "user"))
	}
	return nil
}

func (r *notificationRepo) List(ctx context.Context, userID uuid.UUID, typ *model.NotificationType) ([]model.Notification, error) {
	filter := ""
	if typ != nil {
		filter = string(*typ)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, body, type, data_id, data_type, read, created_at, updated_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC
	`, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var (
			n        model.Notification
			typ      string
			dataType sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &typ, &n.DataID, &dataType, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		if dataType.Valid {
			dt := model.NotificationDataType(dataType.String)
			n.DataType = &dt
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}
