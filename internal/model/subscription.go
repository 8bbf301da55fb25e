package model

import (
	"time"

	"github.com/google/uuid"
)

// Plan codes
const (
	PlanFree   = "free"
	PlanPro    = "pro"
	PlanClinic = "clinic"
)

// Subscription statuses
const (
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

// Limited resources
const (
	ResourcePatients      = "patients"
	ResourceProtocols     = "protocols"
	ResourceCourses       = "courses"
	ResourceClinicMembers = "clinic_members"
)

// Plan is a billing tier. A zero limit means unlimited.
type Plan struct {
	Code             string    `json:"code" db:"code"`
	Name             string    `json:"name" db:"name"`
	PriceCents       int64     `json:"price_cents" db:"price_cents"`
	Interval         string    `json:"interval" db:"interval"`
	MaxPatients      int       `json:"max_patients" db:"max_patients"`
	MaxProtocols     int       `json:"max_protocols" db:"max_protocols"`
	MaxCourses       int       `json:"max_courses" db:"max_courses"`
	MaxClinicMembers int       `json:"max_clinic_members" db:"max_clinic_members"`
	Active           bool      `json:"active" db:"active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Limit returns the plan's cap for a resource.
func (p *Plan) Limit(resource string) int {
	switch resource {
	case ResourcePatients:
		return p.MaxPatients
	case ResourceProtocols:
		return p.MaxProtocols
	case ResourceCourses:
		return p.MaxCourses
	case ResourceClinicMembers:
		return p.MaxClinicMembers
	}
	return 0
}

// DefaultPlans is the seeded catalog.
func DefaultPlans() []*Plan {
	return []*Plan{
		{Code: PlanFree, Name: "Free", PriceCents: 0, Interval: "month", MaxPatients: 5, MaxProtocols: 3, MaxCourses: 1, MaxClinicMembers: 1, Active: true},
		{Code: PlanPro, Name: "Pro", PriceCents: 4900, Interval: "month", MaxPatients: 100, MaxProtocols: 50, MaxCourses: 20, MaxClinicMembers: 5, Active: true},
		{Code: PlanClinic, Name: "Clinic", PriceCents: 19900, Interval: "month", Active: true},
	}
}

type Subscription struct {
	Base
	DoctorID           uuid.UUID  `json:"doctor_id" db:"doctor_id"`
	PlanCode           string     `json:"plan_code" db:"plan_code"`
	Status             string     `json:"status" db:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end" db:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty" db:"canceled_at"`
}

// Live reports whether the subscription currently grants its plan.
func (s *Subscription) Live() bool {
	switch s.Status {
	case SubscriptionTrialing, SubscriptionActive, SubscriptionPastDue:
		return true
	}
	return false
}

type Payment struct {
	Base
	SubscriptionID uuid.UUID `json:"subscription_id" db:"subscription_id"`
	AmountCents    int64     `json:"amount_cents" db:"amount_cents"`
	Reference      string    `json:"reference" db:"reference"`
	PaidAt         time.Time `json:"paid_at" db:"paid_at"`
}

type Usage struct {
	Patients      int `json:"patients"`
	Protocols     int `json:"protocols"`
	Courses       int `json:"courses"`
	ClinicMembers int `json:"clinic_members"`
}

func (u Usage) Of(resource string) int {
	switch resource {
	case ResourcePatients:
		return u.Patients
	case ResourceProtocols:
		return u.Protocols
	case ResourceCourses:
		return u.Courses
	case ResourceClinicMembers:
		return u.ClinicMembers
	}
	return 0
}

// SubscriptionOverview is returned to the doctor.
type SubscriptionOverview struct {
	Subscription *Subscription `json:"subscription,omitempty"`
	Plan         *Plan         `json:"plan"`
	Usage        Usage         `json:"usage"`
}

type SubscribeRequest struct {
	PlanCode string `json:"plan_code" binding:"required"`
}

type RecordPaymentRequest struct {
	SubscriptionID uuid.UUID `json:"subscription_id" binding:"required"`
	AmountCents    int64     `json:"amount_cents" binding:"min=0"`
	Reference      string    `json:"reference" binding:"required,max=120"`
}

type PlanRequest struct {
	Name             string `json:"name" binding:"required,max=80"`
	PriceCents       int64  `json:"price_cents" binding:"min=0"`
	Interval         string `json:"interval" binding:"omitempty,oneof=month year"`
	MaxPatients      int    `json:"max_patients" binding:"min=0"`
	MaxProtocols     int    `json:"max_protocols" binding:"min=0"`
	MaxCourses       int    `json:"max_courses" binding:"min=0"`
	MaxClinicMembers int    `json:"max_clinic_members" binding:"min=0"`
	Active           bool   `json:"active"`
}
