package model

import (
	"time"

	"github.com/google/uuid"
)

// ProfileInput holds the fields every created or updated user carries.
// UserID set means update; passwords are ignored on update.
type ProfileInput struct {
	UserID          *uuid.UUID `json:"userId"`
	Email           string     `json:"email" validate:"required,email"`
	FullName        string     `json:"fullName" validate:"required"`
	Phone           string     `json:"phone" validate:"required"`
	SecondaryPhone  *string    `json:"secondaryPhone"`
	About           *string    `json:"about"`
	Avatar          *string    `json:"avatar"`
	LocationName    *string    `json:"locationName"`
	Latitude        *float64   `json:"latitude"`
	Longitude       *float64   `json:"longitude"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirmPassword"`
}

// UserInput is one of CustomerInput, DriverInput or StaffInput
type UserInput interface {
	Profile() *ProfileInput
	Role() Role
}

// CustomerInput creates or updates a customer with their delivery plan
type CustomerInput struct {
	ProfileInput
	DeliveryRecurrence DeliveryRecurrence `json:"deliveryRecurrence" validate:"required,oneof=ONCE WEEKLY MONTHLY"`
	DateOfMonth        *int               `json:"dateOfMonth" validate:"omitempty,min=1,max=31"`
	DayOfWeek          *int               `json:"dayOfWeek" validate:"omitempty,min=0,max=6"`
	Date               *time.Time         `json:"date"`
	SubscriptionID     uuid.UUID          `json:"subscriptionId" validate:"required"`
	TotalDeliveries    int                `json:"totalDeliveries" validate:"required,min=1"`
}

func (c *CustomerInput) Profile() *ProfileInput { return &c.ProfileInput }
func (c *CustomerInput) Role() Role             { return RoleCustomer }

// DriverInput creates or updates a driver with their truck
type DriverInput struct {
	ProfileInput
	TruckNumber  string `json:"driverTruckNumber" validate:"required"`
	TruckDetails string `json:"driverTruckDetails" validate:"required"`
}

func (d *DriverInput) Profile() *ProfileInput { return &d.ProfileInput }
func (d *DriverInput) Role() Role             { return RoleDriver }

// StaffInput creates or updates general staff
type StaffInput struct {
	ProfileInput
}

func (s *StaffInput) Profile() *ProfileInput { return &s.ProfileInput }
func (s *StaffInput) Role() Role             { return RoleGeneralStaff }
