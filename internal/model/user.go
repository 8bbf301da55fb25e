package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusPending  = "pending"
	UserStatusDisabled = "disabled"
)

// User role constants
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// User is a doctor, patient or platform admin.
type User struct {
	Base
	Email               string     `json:"email" db:"email"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	FirstName           string     `json:"first_name" db:"first_name"`
	LastName            string     `json:"last_name" db:"last_name"`
	Phone               *string    `json:"phone,omitempty" db:"phone"`
	Role                string     `json:"role" db:"role"`
	Status              string     `json:"status" db:"status"`
	ReferralCode        string     `json:"referral_code" db:"referral_code"`
	ReferredBy          *uuid.UUID `json:"referred_by,omitempty" db:"referred_by"`
	EmailVerified       bool       `json:"email_verified" db:"email_verified"`
	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"-" db:"locked_until"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	Timezone            string     `json:"timezone" db:"timezone"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserFilters represents user search parameters
type UserFilters struct {
	Role   string
	Status string
	ListOptions
}

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,max=32"`
	Timezone  *string `json:"timezone" binding:"omitempty,max=64"`
}

// Referral attributes a sign-up to the user whose code was used.
type Referral struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ReferrerID     uuid.UUID `json:"referrer_id" db:"referrer_id"`
	ReferredUserID uuid.UUID `json:"referred_user_id" db:"referred_user_id"`
	Code           string    `json:"code" db:"code"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	ReferredName  string `json:"referred_name,omitempty" db:"referred_name"`
	ReferredEmail string `json:"referred_email,omitempty" db:"referred_email"`
}

type ReferralStats struct {
	Total   int            `json:"total"`
	ByMonth map[string]int `json:"by_month"`
}

type ReferralLookup struct {
	Code         string `json:"code"`
	ReferrerName string `json:"referrer_name"`
	ReferrerRole string `json:"referrer_role"`
}

type UpdateUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active disabled"`
}
