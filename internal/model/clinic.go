package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ClinicRoleOwner  = "owner"
	ClinicRoleDoctor = "doctor"
)

// Clinic is a tenant grouping doctors under a public slug.
type Clinic struct {
	Base
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	Phone       string    `json:"phone" db:"phone"`
	Address     string    `json:"address" db:"address"`
	LogoURL     string    `json:"logo_url" db:"logo_url"`
}

type ClinicMember struct {
	ClinicID  uuid.UUID `json:"clinic_id" db:"clinic_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// populated on listing
	FirstName string `json:"first_name,omitempty" db:"first_name"`
	LastName  string `json:"last_name,omitempty" db:"last_name"`
	Email     string `json:"email,omitempty" db:"email"`
}

// PublicClinic is what anonymous visitors see on the clinic page.
type PublicClinic struct {
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	Phone       string         `json:"phone"`
	Address     string         `json:"address"`
	LogoURL     string         `json:"logo_url"`
	Doctors     []PublicDoctor `json:"doctors"`
}

type PublicDoctor struct {
	Name         string `json:"name"`
	ReferralCode string `json:"referral_code"`
}

type CreateClinicRequest struct {
	Name        string `json:"name" binding:"required,max=120"`
	Slug        string `json:"slug" binding:"omitempty,slug,max=80"`
	Description string `json:"description" binding:"max=2000"`
	Phone       string `json:"phone" binding:"max=32"`
	Address     string `json:"address" binding:"max=255"`
	LogoURL     string `json:"logo_url" binding:"omitempty,url"`
}

type UpdateClinicRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=120"`
	Slug        *string `json:"slug" binding:"omitempty,slug,max=80"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Phone       *string `json:"phone" binding:"omitempty,max=32"`
	Address     *string `json:"address" binding:"omitempty,max=255"`
	LogoURL     *string `json:"logo_url" binding:"omitempty,url"`
}

type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}
