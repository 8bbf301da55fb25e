package model

import (
	"time"

	"github.com/google/uuid"
)

// DoctorPatient links a patient to a doctor. A patient has at most one primary link.
type DoctorPatient struct {
	Base
	DoctorID  uuid.UUID `json:"doctor_id" db:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id" db:"patient_id"`
	IsPrimary bool      `json:"is_primary" db:"is_primary"`
	Notes     string    `json:"notes" db:"notes"`
}

// LinkedUser is one side of a relationship joined with the user record.
type LinkedUser struct {
	RelationshipID uuid.UUID `json:"relationship_id" db:"relationship_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	Email          string    `json:"email" db:"email"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Status         string    `json:"status" db:"status"`
	IsPrimary      bool      `json:"is_primary" db:"is_primary"`
	LinkedAt       time.Time `json:"linked_at" db:"linked_at"`
}

type LinkPatientRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	Primary   bool      `json:"primary"`
	Notes     string    `json:"notes" binding:"max=2000"`
}

type InvitePatientRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Primary   bool   `json:"primary"`
}
