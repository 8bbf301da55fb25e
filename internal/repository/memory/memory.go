// Package memory is an in-process storage backend used by tests and the
// "memory" database driver.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

// DB holds every table behind one lock.
type DB struct {
	mu sync.RWMutex

	users         map[uuid.UUID]*model.User
	referrals     []*model.Referral
	devices       map[string]*model.DeviceToken
	clinics       map[uuid.UUID]*model.Clinic
	members       map[uuid.UUID]map[uuid.UUID]*model.ClinicMember
	relationships map[uuid.UUID]*model.DoctorPatient
	protocols     map[uuid.UUID]*model.Protocol
	prescriptions map[uuid.UUID]*model.Prescription
	completions   map[uuid.UUID]map[string]*model.TaskCompletion
	templates     map[uuid.UUID]*model.OnboardingTemplate
	invites       map[uuid.UUID]*model.OnboardingInvite
	responses     map[uuid.UUID]*model.OnboardingResponse
	courses       map[uuid.UUID]*model.Course
	enrollments   map[uuid.UUID]*model.Enrollment
	appointments  map[uuid.UUID]*model.Appointment
	plans         map[string]*model.Plan
	subscriptions map[uuid.UUID]*model.Subscription
	payments      []*model.Payment
	habits        map[uuid.UUID]*model.Habit
	checkIns      map[uuid.UUID]map[string]*model.HabitCheckIn
	outbox        map[uuid.UUID]*model.OutboxEvent
	audit         []*model.AuditLog
}

func NewDB() *DB {
	return &DB{
		users:         make(map[uuid.UUID]*model.User),
		devices:       make(map[string]*model.DeviceToken),
		clinics:       make(map[uuid.UUID]*model.Clinic),
		members:       make(map[uuid.UUID]map[uuid.UUID]*model.ClinicMember),
		relationships: make(map[uuid.UUID]*model.DoctorPatient),
		protocols:     make(map[uuid.UUID]*model.Protocol),
		prescriptions: make(map[uuid.UUID]*model.Prescription),
		completions:   make(map[uuid.UUID]map[string]*model.TaskCompletion),
		templates:     make(map[uuid.UUID]*model.OnboardingTemplate),
		invites:       make(map[uuid.UUID]*model.OnboardingInvite),
		responses:     make(map[uuid.UUID]*model.OnboardingResponse),
		courses:       make(map[uuid.UUID]*model.Course),
		enrollments:   make(map[uuid.UUID]*model.Enrollment),
		appointments:  make(map[uuid.UUID]*model.Appointment),
		plans:         make(map[string]*model.Plan),
		subscriptions: make(map[uuid.UUID]*model.Subscription),
		habits:        make(map[uuid.UUID]*model.Habit),
		checkIns:      make(map[uuid.UUID]map[string]*model.HabitCheckIn),
		outbox:        make(map[uuid.UUID]*model.OutboxEvent),
	}
}

// NewStore returns a Store backed by a fresh in-memory DB.
func NewStore() *repository.Store {
	db := NewDB()
	return &repository.Store{
		Users:         &userRepository{db},
		Referrals:     &referralRepository{db},
		Clinics:       &clinicRepository{db},
		Relationships: &relationshipRepository{db},
		Protocols:     &protocolRepository{db},
		Prescriptions: &prescriptionRepository{db},
		Onboarding:    &onboardingRepository{db},
		Courses:       &courseRepository{db},
		Appointments:  &appointmentRepository{db},
		Subscriptions: &subscriptionRepository{db},
		Habits:        &habitRepository{db},
		Devices:       &deviceRepository{db},
		Outbox:        &outboxRepository{db},
		Audit:         &auditRepository{db},
		Ping:          func(context.Context) error { return nil },
		Close:         func() error { return nil },
	}
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

func now() time.Time {
	return time.Now().UTC()
}

func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
