// Package users manages accounts on behalf of admins and the profile
// operations of signed-in users.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/auth"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/repo"
	"github.com/dailydrop/server/internal/validate"
)

var (
	errAdminOnly     = apierr.ErrForbidden.WithMessage("Only admins can create users")
	errForbidden     = apierr.ErrForbidden.WithMessage("You are not allowed to access this resource")
	errCreateAdmin   = apierr.ErrBadRequest.WithMessage("Cannot create admin")
	errUserNotFound  = apierr.ErrNotFound.WithMessage("User not found")
	errPasswordMatch = apierr.ErrBadRequest.WithMessage("Passwords do not match")
)

// Notifier records a notification for a user
type Notifier interface {
	Create(ctx context.Context, n *model.Notification) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

type Service struct {
	users         repo.UserRepo
	devices       repo.DeviceRepo
	subscriptions repo.SubscriptionRepo
	notifier      Notifier
	logger        *slog.Logger
}

func NewService(users repo.UserRepo, devices repo.DeviceRepo, subscriptions repo.SubscriptionRepo, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		users:         users,
		devices:       devices,
		subscriptions: subscriptions,
		notifier:      notifier,
		logger:        logger,
	}
}

// Profile is what a signed-in user sees about themselves
type Profile struct {
	ID                  uuid.UUID                 `json:"id"`
	Email               string                    `json:"email"`
	Role                model.Role                `json:"role"`
	FullName            string                    `json:"fullName"`
	Phone               string                    `json:"phone"`
	SecondaryPhone      *string                   `json:"secondaryPhone"`
	About               *string                   `json:"about"`
	Avatar              *string                   `json:"avatar"`
	LocationName        *string                   `json:"locationName"`
	Latitude            *float64                  `json:"latitude"`
	Longitude           *float64                  `json:"longitude"`
	DeliveryRecurrence  *model.DeliveryRecurrence `json:"deliveryRecurrence"`
	DeliveryDateOfMonth *int                      `json:"deliveryDateOfMonth"`
	DeliveryDayOfWeek   *int                      `json:"deliveryDayOfWeek"`
	DeliveryDate        *time.Time                `json:"deliveryDate"`
	TotalDeliveries     *int                      `json:"subscriptionTotalDeliveries"`
	DeliveriesLeft      *int                      `json:"deliveriesLeft"`
	DriverTruckNumber   *string                   `json:"driverTruckNumber"`
	DriverTruckDetails  *string                   `json:"driverTruckDetails"`
	AssignedDriverID    *uuid.UUID                `json:"assignedDriverId"`
	Subscription        *model.Subscription       `json:"subscription"`
	DeviceIDs           []string                  `json:"notificationIds"`
	UnreadNotifications int                       `json:"unreadNotifications"`
	CreatedAt           time.Time                 `json:"createdAt"`
}

// ProfileOf projects u without credentials or OTP state
func ProfileOf(u *model.User) *Profile {
	devices := u.DeviceIDs
	if devices == nil {
		devices = []string{}
	}
	return &Profile{
		ID:                  u.ID,
		Email:               u.Email,
		Role:                u.Role,
		FullName:            u.FullName,
		Phone:               u.Phone,
		SecondaryPhone:      u.SecondaryPhone,
		About:               u.About,
		Avatar:              u.Avatar,
		LocationName:        u.LocationName,
		Latitude:            u.Latitude,
		Longitude:           u.Longitude,
		DeliveryRecurrence:  u.DeliveryRecurrence,
		DeliveryDateOfMonth: u.DeliveryDateOfMonth,
		DeliveryDayOfWeek:   u.DeliveryDayOfWeek,
		DeliveryDate:        u.DeliveryDate,
		TotalDeliveries:     u.TotalDeliveries,
		DeliveriesLeft:      u.DeliveriesLeft,
		DriverTruckNumber:   u.DriverTruckNumber,
		DriverTruckDetails:  u.DriverTruckDetails,
		AssignedDriverID:    u.AssignedDriverID,
		DeviceIDs:           devices,
		CreatedAt:           u.CreatedAt,
	}
}

// BasicInfo is the public card of a user
type BasicInfo struct {
	ID       uuid.UUID  `json:"id"`
	FullName string     `json:"fullName"`
	Avatar   *string    `json:"avatar"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	Role     model.Role `json:"role"`
}

// Me returns the caller's profile, or nil for anonymous callers
func (s *Service) Me(ctx context.Context, user *model.User) (*Profile, error) {
	if user == nil {
		return nil, nil
	}
	p := ProfileOf(user)
	if user.SubscriptionID != nil {
		sub, err := s.subscriptions.GetByID(ctx, *user.SubscriptionID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		p.Subscription = sub
	}
	unread, err := s.notifier.CountUnread(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	p.UnreadNotifications = unread
	return p, nil
}

// DecodeInput reads a create/update payload, picking the variant from its
// "type" field.
func DecodeInput(raw []byte) (model.UserInput, error) {
	var head struct {
		Type model.Role `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, apierr.ErrBadRequest.WithMessage("invalid request body")
	}

	var in model.UserInput
	switch head.Type {
	case model.RoleCustomer:
		in = &model.CustomerInput{}
	case model.RoleDriver:
		in = &model.DriverInput{}
	case model.RoleGeneralStaff:
		in = &model.StaffInput{}
	case model.RoleAdmin:
		return nil, errCreateAdmin
	default:
		return nil, apierr.ErrBadRequest.WithMessage("type must be one of CUSTOMER DRIVER GENERAL_STAFF")
	}
	if err := json.Unmarshal(raw, in); err != nil {
		return nil, apierr.ErrBadRequest.WithMessage("invalid request body")
	}
	return in, nil
}

// Save creates a user, or updates one when the input carries a user id.
// Only admins may call it.
func (s *Service) Save(ctx context.Context, actor *model.User, in model.UserInput) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if c, ok := in.(*model.CustomerInput); ok {
		if err := checkSchedule(c); err != nil {
			return nil, err
		}
	}

	p := in.Profile()
	if p.UserID != nil {
		return s.update(ctx, *p.UserID, in)
	}

	if p.Password == "" || p.ConfirmPassword == "" {
		return nil, apierr.ErrBadRequest.WithMessage("Password and confirm password are required")
	}
	if p.Password != p.ConfirmPassword {
		return nil, errPasswordMatch
	}
	if err := auth.ValidatePassword(p.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{PasswordHash: hash}
	apply(u, in)
	if u.TotalDeliveries != nil {
		left := *u.TotalDeliveries
		u.DeliveriesLeft = &left
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created",
		slog.String("user_id", u.ID.String()),
		slog.String("role", string(u.Role)),
		slog.String("by", actor.ID.String()),
	)
	return u, nil
}

func (s *Service) update(ctx context.Context, id uuid.UUID, in model.UserInput) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	apply(u, in)
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func checkSchedule(c *model.CustomerInput) error {
	switch c.DeliveryRecurrence {
	case model.RecurrenceMonthly:
		if c.DateOfMonth == nil {
			return apierr.ErrBadRequest.WithMessage("dateOfMonth is required for monthly deliveries")
		}
	case model.RecurrenceWeekly:
		if c.DayOfWeek == nil {
			return apierr.ErrBadRequest.WithMessage("dayOfWeek is required for weekly deliveries")
		}
	case model.RecurrenceOnce:
		if c.Date == nil {
			return apierr.ErrBadRequest.WithMessage("date is required for one-time deliveries")
		}
	}
	return nil
}

// apply copies the input onto u, clearing fields that do not belong to the role
func apply(u *model.User, in model.UserInput) {
	p := in.Profile()
	u.Email = p.Email
	u.FullName = p.FullName
	u.Phone = p.Phone
	u.SecondaryPhone = p.SecondaryPhone
	u.About = p.About
	u.Avatar = p.Avatar
	u.LocationName = p.LocationName
	u.Latitude = p.Latitude
	u.Longitude = p.Longitude
	u.Role = in.Role()

	u.DeliveryRecurrence = nil
	u.DeliveryDateOfMonth = nil
	u.DeliveryDayOfWeek = nil
	u.DeliveryDate = nil
	u.SubscriptionID = nil
	u.TotalDeliveries = nil
	u.DriverTruckNumber = nil
	u.DriverTruckDetails = nil

	switch v := in.(type) {
	case *model.CustomerInput:
		rec := v.DeliveryRecurrence
		u.DeliveryRecurrence = &rec
		switch rec {
		case model.RecurrenceMonthly:
			u.DeliveryDateOfMonth = v.DateOfMonth
		case model.RecurrenceWeekly:
			u.DeliveryDayOfWeek = v.DayOfWeek
		case model.RecurrenceOnce:
			u.DeliveryDate = v.Date
		}
		sub := v.SubscriptionID
		u.SubscriptionID = &sub
		total := v.TotalDeliveries
		u.TotalDeliveries = &total
	case *model.DriverInput:
		number, details := v.TruckNumber, v.TruckDetails
		u.DriverTruckNumber = &number
		u.DriverTruckDetails = &details
	case *model.StaffInput:
	}
}

// List searches users. General staff may only list customers.
func (s *Service) List(ctx context.Context, actor *model.User, keyword string, role model.Role) ([]*Profile, error) {
	switch {
	case actor.IsAdmin():
	case actor.Role == model.RoleGeneralStaff && role == model.RoleCustomer:
	default:
		return nil, errForbidden
	}
	if role != "" && !role.Valid() {
		return nil, apierr.ErrBadRequest.WithMessage("Invalid role")
	}

	found, err := s.users.List(ctx, repo.UserFilter{Keyword: keyword, Role: role})
	if err != nil {
		return nil, err
	}
	return profiles(found), nil
}

// ListUnassigned returns customers without a driver
func (s *Service) ListUnassigned(ctx context.Context, actor *model.User) ([]*Profile, error) {
	if !actor.IsAdmin() {
		return nil, errForbidden
	}
	found, err := s.users.ListUnassignedCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return profiles(found), nil
}

// AssignDriver assigns a driver to a customer and notifies the driver
func (s *Service) AssignDriver(ctx context.Context, actor *model.User, customerID, driverID uuid.UUID) error {
	if !actor.IsAdmin() {
		return errForbidden
	}
	customer, err := s.users.GetByID(ctx, customerID)
	if err != nil || customer.Role != model.RoleCustomer {
		if err == nil || errors.Is(err, repo.ErrNotFound) {
			return apierr.ErrNotFound.WithMessage("Customer not found")
		}
		return err
	}
	driver, err := s.users.GetByID(ctx, driverID)
	if err != nil || driver.Role != model.RoleDriver {
		if err == nil || errors.Is(err, repo.ErrNotFound) {
			return apierr.ErrNotFound.WithMessage("Driver not found")
		}
		return err
	}

	if err := s.users.AssignDriver(ctx, customer.ID, driver.ID); err != nil {
		return err
	}

	dataID := customer.ID.String()
	dataType := model.NotificationDataUser
	return s.notifier.Create(ctx, &model.Notification{
		UserID:   driver.ID,
		Title:    "New customer assigned",
		Body:     fmt.Sprintf("%s has been assigned to you", customer.FullName),
		Type:     model.NotificationCustomerAssigned,
		DataID:   &dataID,
		DataType: &dataType,
	})
}

// GetBasicInfo returns the public card of any user
func (s *Service) GetBasicInfo(ctx context.Context, userID uuid.UUID) (*BasicInfo, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return &BasicInfo{ID: u.ID, FullName: u.FullName, Avatar: u.Avatar, Email: u.Email, Phone: u.Phone, Role: u.Role}, nil
}

// AddDeviceID registers a push token for the caller
func (s *Service) AddDeviceID(ctx context.Context, user *model.User, token string) error {
	return s.devices.Add(ctx, user.ID, token)
}

// RemoveDeviceID forgets a push token of the caller
func (s *Service) RemoveDeviceID(ctx context.Context, user *model.User, token string) error {
	return s.devices.Remove(ctx, user.ID, token)
}

func profiles(us []model.User) []*Profile {
	out := make([]*Profile, len(us))
	for i := range us {
		out[i] = ProfileOf(&us[i])
	}
	return out
}
