package model

import (
	"time"

	"github.com/google/uuid"
)

// Prescription statuses
const (
	PrescriptionActive    = "active"
	PrescriptionPaused    = "paused"
	PrescriptionCompleted = "completed"
	PrescriptionAbandoned = "abandoned"
)

// Prescription is a protocol assigned to a patient, tracking their progress.
type Prescription struct {
	Base
	DoctorID    uuid.UUID  `json:"doctor_id" db:"doctor_id"`
	PatientID   uuid.UUID  `json:"patient_id" db:"patient_id"`
	ProtocolID  uuid.UUID  `json:"protocol_id" db:"protocol_id"`
	Status      string     `json:"status" db:"status"`
	StartDate   time.Time  `json:"start_date" db:"start_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Notes       string     `json:"notes" db:"notes"`
}

// IsOpen reports whether the prescription still counts against duplicate assignment.
func (p *Prescription) IsOpen() bool {
	return p.Status == PrescriptionActive || p.Status == PrescriptionPaused
}

var prescriptionTransitions = map[string][]string{
	PrescriptionActive: {PrescriptionPaused, PrescriptionAbandoned, PrescriptionCompleted},
	PrescriptionPaused: {PrescriptionActive, PrescriptionAbandoned},
}

// CanTransition reports whether a prescription may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range prescriptionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type TaskCompletion struct {
	PrescriptionID uuid.UUID `json:"prescription_id" db:"prescription_id"`
	TaskID         string    `json:"task_id" db:"task_id"`
	CompletedAt    time.Time `json:"completed_at" db:"completed_at"`
}

// PrescriptionProgress is the patient's view of a prescription.
type PrescriptionProgress struct {
	Prescription   *Prescription `json:"prescription"`
	ProtocolTitle  string        `json:"protocol_title"`
	TotalDays      int           `json:"total_days"`
	TotalTasks     int           `json:"total_tasks"`
	CompletedTasks int           `json:"completed_tasks"`
	Percent        float64       `json:"percent"`
	CurrentDay     int           `json:"current_day"`
	Today          *ProtocolDay  `json:"today,omitempty"`
	CompletedIDs   []string      `json:"completed_task_ids"`
}

type PrescriptionFilters struct {
	DoctorID   *uuid.UUID
	PatientID  *uuid.UUID
	ProtocolID *uuid.UUID
	Status     string
}

type AssignProtocolRequest struct {
	PatientID  uuid.UUID `json:"patient_id" binding:"required"`
	ProtocolID uuid.UUID `json:"protocol_id" binding:"required"`
	StartDate  string    `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	Notes      string    `json:"notes" binding:"max=2000"`
}

type UpdatePrescriptionStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active paused abandoned"`
}
