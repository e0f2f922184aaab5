package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/model"
)

// SubscriptionRepo reads delivery plans
type SubscriptionRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
}

type subscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) SubscriptionRepo {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	var s model.Subscription
	err := r.db.QueryRowContext(ctx, `SELECT id, name, dietary FROM subscriptions WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Dietary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subscription not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	return &s, nil
}
