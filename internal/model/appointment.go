package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

type Appointment struct {
	Base
	DoctorID     uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID    uuid.UUID         `db:"patient_id" json:"patient_id"`
	ClinicID     *uuid.UUID        `db:"clinic_id" json:"clinic_id,omitempty"`
	StartsAt     time.Time         `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time         `db:"ends_at" json:"ends_at"`
	Status       AppointmentStatus `db:"status" json:"status"`
	Notes        string            `db:"notes" json:"notes,omitempty"`
	CancelReason *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	ReminderSent bool              `db:"reminder_sent" json:"reminder_sent"`
}

// Overlaps reports whether a and [start, end) intersect.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartsAt.Before(end) && start.Before(a.EndsAt)
}

type CreateAppointmentRequest struct {
	PatientID uuid.UUID  `json:"patient_id" binding:"required"`
	ClinicID  *uuid.UUID `json:"clinic_id"`
	StartsAt  time.Time  `json:"starts_at" binding:"required"`
	EndsAt    time.Time  `json:"ends_at" binding:"required,gtfield=StartsAt"`
	Notes     string     `json:"notes" binding:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	StartsAt time.Time `json:"starts_at" binding:"required"`
	EndsAt   time.Time `json:"ends_at" binding:"required,gtfield=StartsAt"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type AppointmentFilters struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    AppointmentStatus
	From      time.Time
	To        time.Time
}
