package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access role of a user
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleCustomer     Role = "CUSTOMER"
	RoleDriver       Role = "DRIVER"
	RoleGeneralStaff Role = "GENERAL_STAFF"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCustomer, RoleDriver, RoleGeneralStaff:
		return true
	}
	return false
}

// DeliveryRecurrence is how often a customer receives deliveries
type DeliveryRecurrence string

const (
	RecurrenceOnce    DeliveryRecurrence = "ONCE"
	RecurrenceWeekly  DeliveryRecurrence = "WEEKLY"
	RecurrenceMonthly DeliveryRecurrence = "MONTHLY"
)

// NotificationType classifies notifications so users can opt out per type
type NotificationType string

const (
	NotificationCustomerAssigned NotificationType = "CUSTOMER_ASSIGNED"
	NotificationGeneral          NotificationType = "GENERAL"
)

// NotificationDataType names the kind of entity a notification points at
type NotificationDataType string

const NotificationDataUser NotificationDataType = "USER"

// User represents a user in the system
type User struct {
	ID                    uuid.UUID
	Email                 string
	PasswordHash          string
	PasswordChangeCounter int
	OTP                   *string
	LastOTPSentAt         *time.Time
	Role                  Role

	FullName       string
	Phone          string
	SecondaryPhone *string
	About          *string
	Avatar         *string
	LocationName   *string
	Latitude       *float64
	Longitude      *float64

	DeliveryRecurrence    *DeliveryRecurrence
	DeliveryDateOfMonth   *int
	DeliveryDayOfWeek     *int
	DeliveryDate          *time.Time
	SubscriptionID        *uuid.UUID
	TotalDeliveries       *int
	DeliveriesLeft        *int
	DriverTruckNumber     *string
	DriverTruckDetails    *string
	AssignedDriverID      *uuid.UUID
	DisabledNotifications []NotificationType

	DeviceIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user holds the ADMIN role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NotificationDisabled reports whether the user opted out of t
func (u *User) NotificationDisabled(t NotificationType) bool {
	for _, d := range u.DisabledNotifications {
		if d == t {
			return true
		}
	}
	return false
}

// Subscription is a delivery plan a customer can be enrolled in
type Subscription struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Dietary *string   `json:"dietary,omitempty"`
}

// Participant is the public projection of a user inside a chat
type Participant struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Avatar   *string   `json:"avatar"`
}

// Message is an immutable chat message. ID is a ULID so that ids created in
// the same millisecond still sort in insertion order.
type Message struct {
	ID        string      `json:"id"`
	ChatID    uuid.UUID   `json:"chatId"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	Sender    Participant `json:"sender"`
}

// Chat is a support conversation between a customer and the admin pool
type Chat struct {
	ID           uuid.UUID     `json:"id"`
	Closed       bool          `json:"closed"`
	Read         bool          `json:"read"`
	CreatedAt    time.Time     `json:"createdAt"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
}

// Notification is an in-app notice, optionally delivered by push
type Notification struct {
	ID        uuid.UUID             `json:"id"`
	UserID    uuid.UUID             `json:"userId"`
	Title     string                `json:"title"`
	Body      string                `json:"body"`
	Type      NotificationType      `json:"type"`
	DataID    *string               `json:"dataId,omitempty"`
	DataType  *NotificationDataType `json:"dataType,omitempty"`
	Read      bool                  `json:"read"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}
