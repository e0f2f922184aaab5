package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// DeviceRepo manages the push tokens registered for a user
type DeviceRepo interface {
	Add(ctx context.Context, userID uuid.UUID, token string) error
	Remove(ctx context.Context, userID uuid.UUID, token string) error
}

type deviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo creates a new DeviceRepo instance
func NewDeviceRepo(db *sql.DB) DeviceRepo {
	return &deviceRepo{db: db}
}

// Add registers token for the user; registering the same token twice is a no-op
func (r *deviceRepo) Add(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_devices (user_id, token)
		VALUES ($1, $2)
		ON CONFLICT (user_id, token) DO NOTHING
	`, userID, token)
	if err != nil {
		return fmt.Errorf("failed to add device: %w", mapWriteError(err, "user"))
	}
	return nil
}

func (r *deviceRepo) Remove(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_devices WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}
	return nil
}
