package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty" db:"entity_id"`
	Changes    JSONMap    `json:"changes,omitempty" db:"changes"`
	IPAddress  string     `json:"ip_address" db:"ip_address"`
	UserAgent  string     `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate = "create"
	AuditActionRead   = "read"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionLogin  = "login"

	// Entity types
	AuditEntityUser               = "user"
	AuditEntityOnboardingResponse = "onboarding_response"
	AuditEntityPrescription       = "prescription"
	AuditEntityAppointment        = "appointment"
	AuditEntitySubscription       = "subscription"
)

type AuditFilters struct {
	UserID     *uuid.UUID
	EntityType string
	Action     string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

type AuditStats struct {
	TotalLogs    int64          `json:"total_logs"`
	ActionCounts map[string]int `json:"action_counts"`
	EntityCounts map[string]int `json:"entity_counts"`
}
