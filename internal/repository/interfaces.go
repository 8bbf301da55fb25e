package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetByReferralCode(ctx context.Context, code string) (*model.User, error)
		ReferralCodeExists(ctx context.Context, code string) (bool, error)
		Update(ctx context.Context, user *model.User) error
		List(ctx context.Context, filters *model.UserFilters) ([]*model.User, int, error)
	}

	ReferralRepository interface {
		Create(ctx context.Context, referral *model.Referral) error
		ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*model.Referral, error)
	}

	ClinicRepository interface {
		// Create inserts the clinic and its owner membership together.
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		GetBySlug(ctx context.Context, slug string) (*model.Clinic, error)
		SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
		Update(ctx context.Context, clinic *model.Clinic) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByMember(ctx context.Context, userID uuid.UUID) ([]*model.Clinic, error)
		AddMember(ctx context.Context, member *model.ClinicMember) error
		GetMember(ctx context.Context, clinicID, userID uuid.UUID) (*model.ClinicMember, error)
		RemoveMember(ctx context.Context, clinicID, userID uuid.UUID) error
		ListMembers(ctx context.Context, clinicID uuid.UUID) ([]*model.ClinicMember, error)
		CountMembers(ctx context.Context, clinicID uuid.UUID) (int, error)
	}

	RelationshipRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.DoctorPatient, error)
		Find(ctx context.Context, doctorID, patientID uuid.UUID) (*model.DoctorPatient, error)
		// Create inserts the link. When rel.IsPrimary is set, the patient's
		// other links lose their primary flag in the same transaction.
		Create(ctx context.Context, rel *model.DoctorPatient) error
		SetPrimary(ctx context.Context, id uuid.UUID) error
		// Delete removes the link and promotes the patient's most recent
		// remaining link when the removed one was primary.
		Delete(ctx context.Context, id uuid.UUID) error
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.DoctorPatient, error)
		ListPatients(ctx context.Context, doctorID uuid.UUID, opts model.ListOptions) ([]*model.LinkedUser, error)
		ListDoctors(ctx context.Context, patientID uuid.UUID) ([]*model.LinkedUser, error)
		CountPatients(ctx context.Context, doctorID uuid.UUID) (int, error)
	}

	ProtocolRepository interface {
		Create(ctx context.Context, protocol *model.Protocol) error
		Get(ctx context.Context, id uuid.UUID) (*model.Protocol, error)
		Update(ctx context.Context, protocol *model.Protocol) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByDoctor(ctx context.Context, doctorID uuid.UUID, opts model.ListOptions) ([]*model.Protocol, error)
		CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, p *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		Update(ctx context.Context, p *model.Prescription) error
		List(ctx context.Context, filters *model.PrescriptionFilters) ([]*model.Prescription, error)
		HasOpen(ctx context.Context, patientID, protocolID uuid.UUID) (bool, error)
		CountOpenForProtocol(ctx context.Context, protocolID uuid.UUID) (int, error)
		// AddCompletion reports false when the task was already completed.
		AddCompletion(ctx context.Context, c *model.TaskCompletion) (bool, error)
		RemoveCompletion(ctx context.Context, prescriptionID uuid.UUID, taskID string) (bool, error)
		// Reopen removes a task completion and saves p in one transaction.
		// It reports false and changes nothing when the task was not completed.
		Reopen(ctx context.Context, p *model.Prescription, taskID string) (bool, error)
		ListCompletions(ctx context.Context, prescriptionID uuid.UUID) ([]*model.TaskCompletion, error)
	}

	OnboardingRepository interface {
		// CreateTemplate and UpdateTemplate clear the doctor's other defaults
		// when the template is the default.
		CreateTemplate(ctx context.Context, t *model.OnboardingTemplate) error
		GetTemplate(ctx context.Context, id uuid.UUID) (*model.OnboardingTemplate, error)
		UpdateTemplate(ctx context.Context, t *model.OnboardingTemplate) error
		DeleteTemplate(ctx context.Context, id uuid.UUID) error
		ListTemplates(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingTemplate, error)
		GetDefaultTemplate(ctx context.Context, doctorID uuid.UUID) (*model.OnboardingTemplate, error)

		CreateInvite(ctx context.Context, inv *model.OnboardingInvite) error
		GetInviteByToken(ctx context.Context, token string) (*model.OnboardingInvite, error)
		UpdateInvite(ctx context.Context, inv *model.OnboardingInvite) error
		ListInvites(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingInvite, error)

		CreateResponse(ctx context.Context, r *model.OnboardingResponse) error
		GetResponse(ctx context.Context, id uuid.UUID) (*model.OnboardingResponse, error)
		ListResponses(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingResponse, error)
	}

	CourseRepository interface {
		Create(ctx context.Context, c *model.Course) error
		Get(ctx context.Context, id uuid.UUID) (*model.Course, error)
		Update(ctx context.Context, c *model.Course) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Course, error)
		CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)

		CreateEnrollment(ctx context.Context, e *model.Enrollment) error
		GetEnrollment(ctx context.Context, courseID, patientID uuid.UUID) (*model.Enrollment, error)
		UpdateEnrollment(ctx context.Context, e *model.Enrollment) error
		ListEnrollments(ctx context.Context, patientID uuid.UUID) ([]*model.Enrollment, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		CheckConflicts(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
		ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Appointment, error)
	}

	SubscriptionRepository interface {
		ListPlans(ctx context.Context) ([]*model.Plan, error)
		GetPlan(ctx context.Context, code string) (*model.Plan, error)
		UpsertPlan(ctx context.Context, plan *model.Plan) error

		Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
		GetByDoctor(ctx context.Context, doctorID uuid.UUID) (*model.Subscription, error)
		Create(ctx context.Context, sub *model.Subscription) error
		Update(ctx context.Context, sub *model.Subscription) error
		ListPeriodEnded(ctx context.Context, before time.Time) ([]*model.Subscription, error)
		CreatePayment(ctx context.Context, p *model.Payment) error
	}

	HabitRepository interface {
		Create(ctx context.Context, h *model.Habit) error
		Get(ctx context.Context, id uuid.UUID) (*model.Habit, error)
		Update(ctx context.Context, h *model.Habit) error
		ListByPatient(ctx context.Context, patientID uuid.UUID, includeArchived bool) ([]*model.Habit, error)
		// AddCheckIn reports false when the habit was already checked in on that date.
		AddCheckIn(ctx context.Context, c *model.HabitCheckIn) (bool, error)
		RemoveCheckIn(ctx context.Context, habitID uuid.UUID, date time.Time) (bool, error)
		ListCheckIns(ctx context.Context, habitID uuid.UUID, from, to time.Time) ([]*model.HabitCheckIn, error)
	}

	DeviceRepository interface {
		Upsert(ctx context.Context, d *model.DeviceToken) error
		Delete(ctx context.Context, userID uuid.UUID, token string) error
		DeleteTokens(ctx context.Context, tokens []string) error
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.DeviceToken, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending marks up to limit due events as processing and returns them.
		ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error)
		Stats(ctx context.Context, filters *model.AuditFilters) (*model.AuditStats, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)

// Store bundles every repository behind one storage backend.
type Store struct {
	Users         UserRepository
	Referrals     ReferralRepository
	Clinics       ClinicRepository
	Relationships RelationshipRepository
	Protocols     ProtocolRepository
	Prescriptions PrescriptionRepository
	Onboarding    OnboardingRepository
	Courses       CourseRepository
	Appointments  AppointmentRepository
	Subscriptions SubscriptionRepository
	Habits        HabitRepository
	Devices       DeviceRepository
	Outbox        OutboxRepository
	Audit         AuditRepository

	Ping  func(ctx context.Context) error
	Close func() error
}
