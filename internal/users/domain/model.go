package domain

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is the account record. Firebase UID is the primary identifier; the
// Stripe customer id is attached the first time the user starts a payment flow.
type User struct {
	FirebaseUID      string     `json:"firebase_uid"`
	Email            string     `json:"email"`
	DisplayName      *string    `json:"display_name,omitempty"`
	PhotoURL         *string    `json:"photo_url,omitempty"`
	Plan             Plan       `json:"plan"`
	StripeCustomerID *string    `json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

// CustomerID returns the Stripe customer id or "".
func (u *User) CustomerID() string {
	if u == nil || u.StripeCustomerID == nil {
		return ""
	}
	return *u.StripeCustomerID
}

// SyncUserRequest carries sign-in data used to create or refresh a user.
type SyncUserRequest struct {
	FirebaseUID string
	Email       string
	DisplayName *string
	PhotoURL    *string
}

// UpdateUserRequest represents data for updating a user profile.
type UpdateUserRequest struct {
	DisplayName *string
	PhotoURL    *string
}
