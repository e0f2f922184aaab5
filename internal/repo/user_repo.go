package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dailydrop/server/internal/model"
)

// UserFilter narrows List. Zero values match everything.
type UserFilter struct {
	Keyword string
	Role    model.Role
}

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListIDsByRole(ctx context.Context, role model.Role) ([]uuid.UUID, error)
	// UpdatePassword stores the hash and increments the password change
	// counter in one statement, returning the new counter.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (int, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	List(ctx context.Context, f UserFilter) ([]model.User, error)
	ListUnassignedCustomers(ctx context.Context) ([]model.User, error)
	AssignDriver(ctx context.Context, customerID, driverID uuid.UUID) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `
	id, email, password_hash, password_change_counter, otp, last_otp_sent_at, role,
	full_name, phone, secondary_phone, about, avatar, location_name, latitude, longitude,
	delivery_recurrence, delivery_date_of_month, delivery_day_of_week, delivery_date,
	subscription_id, subscription_total_deliveries, deliveries_left,
	driver_truck_number, driver_truck_details, assigned_driver_id, disabled_notifications,
	ARRAY(SELECT token FROM user_devices d WHERE d.user_id = users.id ORDER BY d.created_at) AS device_ids,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u          model.User
		role       string
		recurrence sql.NullString
		subID      uuid.NullUUID
		driverID   uuid.NullUUID
		disabled   pq.StringArray
		devices    pq.StringArray
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.PasswordChangeCounter, &u.OTP, &u.LastOTPSentAt, &role,
		&u.FullName, &u.Phone, &u.SecondaryPhone, &u.About, &u.Avatar, &u.LocationName, &u.Latitude, &u.Longitude,
		&recurrence, &u.DeliveryDateOfMonth, &u.DeliveryDayOfWeek, &u.DeliveryDate,
		&subID, &u.TotalDeliveries, &u.DeliveriesLeft,
		&u.DriverTruckNumber, &u.DriverTruckDetails, &driverID, &disabled,
		&devices,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = model.Role(role)
	if recurrence.Valid {
		r := model.DeliveryRecurrence(recurrence.String)
		u.DeliveryRecurrence = &r
	}
	if subID.Valid {
		u.SubscriptionID = &subID.UUID
	}
	if driverID.Valid {
		u.AssignedDriverID = &driverID.UUID
	}
	for _, d := range disabled {
		u.DisabledNotifications = append(u.DisabledNotifications, model.NotificationType(d))
	}
	u.DeviceIDs = []string(devices)
	return &u, nil
}

func (r *userRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail retrieves a user by email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "email = $1", email)
}

func (r *userRepo) ListIDsByRole(ctx context.Context, role model.Role) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY created_at`, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (int, error) {
	var counter int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET password_hash = $2, password_change_counter = password_change_counter + 1, updated_at = now()
		WHERE id = $1
		RETURNING password_change_counter
	`, id, passwordHash).Scan(&counter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to update password: %w", err)
	}
	return counter, nil
}

func recurrenceArg(r *model.DeliveryRecurrence) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

// Create inserts u and fills in its generated ID and timestamps
func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (
			email, password_hash, password_change_counter, role,
			full_name, phone, secondary_phone, about, avatar, location_name, latitude, longitude,
			delivery_recurrence, delivery_date_of_month, delivery_day_of_week, delivery_date,
			subscription_id, subscription_total_deliveries, deliveries_left,
			driver_truck_number, driver_truck_details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id, created_at, updated_at
	`,
		u.Email, u.PasswordHash, u.PasswordChangeCounter, string(u.Role),
		u.FullName, u.Phone, u.SecondaryPhone, u.About, u.Avatar, u.LocationName, u.Latitude, u.Longitude,
		recurrenceArg(u.DeliveryRecurrence), u.DeliveryDateOfMonth, u.DeliveryDayOfWeek, u.DeliveryDate,
		u.SubscriptionID, u.TotalDeliveries, u.DeliveriesLeft,
		u.DriverTruckNumber, u.DriverTruckDetails,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapWriteError(err, "subscription"))
	}
	return nil
}

// Update overwrites the profile and role fields of an existing user.
// Credentials, OTP state and assignments are left untouched.
func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			email = $2, role = $3, full_name = $4, phone = $5, secondary_phone = $6, about = $7,
			avatar = $8, location_name = $9, latitude = $10, longitude = $11,
			delivery_recurrence = $12, delivery_date_of_month = $13, delivery_day_of_week = $14, delivery_date = $15,
			subscription_id = $16, subscription_total_deliveries = $17,
			driver_truck_number = $18, driver_truck_details = $19,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`,
		u.ID, u.Email, string(u.Role), u.FullName, u.Phone, u.SecondaryPhone, u.About,
		u.Avatar, u.LocationName, u.Latitude, u.Longitude,
		recurrenceArg(u.DeliveryRecurrence), u.DeliveryDateOfMonth, u.DeliveryDayOfWeek, u.DeliveryDate,
		u.SubscriptionID, u.TotalDeliveries,
		u.DriverTruckNumber, u.DriverTruckDetails,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to update user: %w", mapWriteError(err, "subscription"))
	}
	return nil
}

func (r *userRepo) queryUsers(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *userRepo) List(ctx context.Context, f UserFilter) ([]model.User, error) {
	return r.queryUsers(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1 = '' OR role = $1)
		  AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%'
		       OR phone ILIKE '%' || $2 || '%' OR secondary_phone ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
	`, string(f.Role), f.Keyword)
}

func (r *userRepo) ListUnassignedCustomers(ctx context.Context) ([]model.User, error) {
	return r.queryUsers(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'CUSTOMER' AND assigned_driver_id IS NULL
		ORDER BY created_at DESC
	`)
}

func (r *userRepo) AssignDriver(ctx context.Context, customerID, driverID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET assigned_driver_id = $2, updated_at = now() WHERE id = $1
	`, customerID, driverID)
	if err != nil {
		return fmt.Errorf("failed to assign driver: %w", mapWriteError(err, "driver"))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("customer not found: %w", ErrNotFound)
	}
	return nil
}
