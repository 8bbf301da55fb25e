package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// Question kinds
const (
	QuestionText         = "text"
	QuestionSingleChoice = "single_choice"
	QuestionMultiChoice  = "multi_choice"
	QuestionScale        = "scale"
	QuestionBoolean      = "boolean"
	QuestionDate         = "date"
)

// Invite statuses
const (
	InvitePending   = "pending"
	InviteCompleted = "completed"
	InviteExpired   = "expired"
)

// OnboardingTemplate is a multi-step questionnaire sent to new patients.
type OnboardingTemplate struct {
	Base
	DoctorID    uuid.UUID       `json:"doctor_id" db:"doctor_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	IsDefault   bool            `json:"is_default" db:"is_default"`
	Steps       OnboardingSteps `json:"steps" db:"steps"`
}

type OnboardingStep struct {
	Title       string               `json:"title" binding:"required,max=200"`
	Description string               `json:"description" binding:"max=2000"`
	Questions   []OnboardingQuestion `json:"questions" binding:"required,min=1,dive"`
}

type OnboardingQuestion struct {
	ID       string   `json:"id"`
	Label    string   `json:"label" binding:"required,max=500"`
	Kind     string   `json:"kind" binding:"required,oneof=text single_choice multi_choice scale boolean date"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Min      *int     `json:"min,omitempty"`
	Max      *int     `json:"max,omitempty"`
}

type OnboardingSteps []OnboardingStep

func (s OnboardingSteps) Value() (driver.Value, error) { return jsonValue(s) }
func (s *OnboardingSteps) Scan(src interface{}) error  { return jsonScan(src, s) }

// Questions flattens all steps.
func (t *OnboardingTemplate) Questions() []OnboardingQuestion {
	var out []OnboardingQuestion
	for _, s := range t.Steps {
		out = append(out, s.Questions...)
	}
	return out
}

type OnboardingInvite struct {
	Base
	DoctorID    uuid.UUID  `json:"doctor_id" db:"doctor_id"`
	TemplateID  uuid.UUID  `json:"template_id" db:"template_id"`
	Email       string     `json:"email" db:"email"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	Token       string     `json:"-" db:"token"`
	Status      string     `json:"status" db:"status"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	PatientID   *uuid.UUID `json:"patient_id,omitempty" db:"patient_id"`
}

// EffectiveStatus reports expired for pending invites past their expiry.
func (i *OnboardingInvite) EffectiveStatus(now time.Time) string {
	if i.Status == InvitePending && now.After(i.ExpiresAt) {
		return InviteExpired
	}
	return i.Status
}

// OnboardingResponse stores submitted answers. Answers are encrypted at rest in Ciphertext.
type OnboardingResponse struct {
	Base
	InviteID   uuid.UUID `json:"invite_id" db:"invite_id"`
	TemplateID uuid.UUID `json:"template_id" db:"template_id"`
	DoctorID   uuid.UUID `json:"doctor_id" db:"doctor_id"`
	PatientID  uuid.UUID `json:"patient_id" db:"patient_id"`
	Ciphertext []byte    `json:"-" db:"answers"`
	Answers    JSONMap   `json:"answers" db:"-"`
}

// PublicInvite is what the invited patient sees.
type PublicInvite struct {
	Status     string              `json:"status"`
	Email      string              `json:"email"`
	DoctorName string              `json:"doctor_name"`
	ExpiresAt  time.Time           `json:"expires_at"`
	Template   *OnboardingTemplate `json:"template"`
}

type OnboardingTemplateRequest struct {
	Name        string           `json:"name" binding:"required,max=200"`
	Description string           `json:"description" binding:"max=2000"`
	IsDefault   bool             `json:"is_default"`
	Steps       []OnboardingStep `json:"steps" binding:"required,min=1,dive"`
}

type SendInviteRequest struct {
	Email      string     `json:"email" binding:"required,email"`
	FirstName  string     `json:"first_name" binding:"max=100"`
	LastName   string     `json:"last_name" binding:"max=100"`
	TemplateID *uuid.UUID `json:"template_id"`
}

type SubmitOnboardingRequest struct {
	Password  string                 `json:"password" binding:"omitempty,min=8"`
	FirstName string                 `json:"first_name" binding:"max=100"`
	LastName  string                 `json:"last_name" binding:"max=100"`
	Answers   map[string]interface{} `json:"answers" binding:"required"`
}
