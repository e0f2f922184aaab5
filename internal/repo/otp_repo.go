package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OtpRepo stores the single outstanding OTP of a user
type OtpRepo interface {
	// SetOTP replaces any previous code and records when it was sent.
	SetOTP(ctx context.Context, userID uuid.UUID, code string, sentAt time.Time) error
}

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a new OtpRepo instance
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

func (r *otpRepo) SetOTP(ctx context.Context, userID uuid.UUID, code string, sentAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET otp = $2, last_otp_sent_at = $3 WHERE id = $1
	`, userID, code, sentAt)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}
