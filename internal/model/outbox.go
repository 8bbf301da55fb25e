package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusRetry      OutboxStatus = "retry"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Event types
const (
	EventUserRegistered            = "user.registered"
	EventClinicCreated             = "clinic.created"
	EventRelationshipLinked        = "relationship.linked"
	EventPrescriptionAssigned      = "prescription.assigned"
	EventPrescriptionStatusChanged = "prescription.status_changed"
	EventOnboardingSubmitted       = "onboarding.submitted"
	EventAppointmentBooked         = "appointment.booked"
	EventAppointmentCancelled      = "appointment.cancelled"
	EventSubscriptionChanged       = "subscription.changed"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
