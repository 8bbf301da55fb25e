package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	"github.com/jwalitptl/clinic-platform/internal/service/audit"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	"github.com/jwalitptl/clinic-platform/internal/service/notification"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

const MaxAppointmentDuration = 8 * time.Hour

type Service struct {
	store    *repository.Store
	notifier *notification.Service
	events   event.Emitter
	auditor  *audit.Service
	now      func() time.Time
}

func NewService(store *repository.Store, notifier *notification.Service, events event.Emitter, auditor *audit.Service) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		events:   events,
		auditor:  auditor,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) validateAppointmentTime(start, end time.Time) error {
	if !end.After(start) {
		return apperrors.BadRequest("appointment must end after it starts", nil)
	}
	if end.Sub(start) > MaxAppointmentDuration {
		return apperrors.BadRequest(fmt.Sprintf("appointment cannot be longer than %v", MaxAppointmentDuration), nil)
	}
	if start.Before(s.now()) {
		return apperrors.BadRequest("appointment cannot be scheduled in the past", nil)
	}
	return nil
}

func (s *Service) checkSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude *uuid.UUID) error {
	conflict, err := s.store.Appointments.CheckConflicts(ctx, doctorID, start, end, exclude)
	if err != nil {
		return apperrors.Internal(err)
	}
	if conflict {
		return apperrors.Conflict("appointment conflicts with an existing booking", nil)
	}
	return nil
}

// Book schedules an appointment between a doctor and a linked patient.
func (s *Service) Book(ctx context.Context, doctorID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	start, end := req.StartsAt.UTC(), req.EndsAt.UTC()
	if err := s.validateAppointmentTime(start, end); err != nil {
		return nil, err
	}
	if err := service.EnsureLinked(ctx, s.store.Relationships, doctorID, req.PatientID); err != nil {
		return nil, err
	}
	if req.ClinicID != nil {
		if _, err := s.store.Clinics.GetMember(ctx, *req.ClinicID, doctorID); err != nil {
			return nil, apperrors.Forbidden("not a member of this clinic")
		}
	}
	if err := s.checkSlot(ctx, doctorID, start, end, nil); err != nil {
		return nil, err
	}

	apt := &model.Appointment{
		DoctorID:  doctorID,
		PatientID: req.PatientID,
		ClinicID:  req.ClinicID,
		StartsAt:  start,
		EndsAt:    end,
		Status:    model.AppointmentStatusScheduled,
		Notes:     req.Notes,
	}
	if err := s.store.Appointments.Create(ctx, apt); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.events.Record(ctx, model.EventAppointmentBooked, apt)
	s.auditor.Record(ctx, doctorID, model.AuditActionCreate, "appointment", apt.ID, map[string]interface{}{
		"patient_id": apt.PatientID,
		"starts_at":  apt.StartsAt,
	})
	return apt, nil
}

// Get is visible to both participants and admins.
func (s *Service) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.store.Appointments.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepo("appointment", err)
	}
	if !actor.IsAdmin() && apt.DoctorID != actor.ID && apt.PatientID != actor.ID {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return apt, nil
}

func (s *Service) scheduled(ctx context.Context, actor service.Actor, id uuid.UUID, doctorOnly bool) (*model.Appointment, error) {
	apt, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if doctorOnly && apt.DoctorID != actor.ID && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only the doctor can change this appointment")
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, apperrors.BadRequest(fmt.Sprintf("appointment is %s", apt.Status), nil)
	}
	return apt, nil
}

func (s *Service) Reschedule(ctx context.Context, actor service.Actor, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.scheduled(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	start, end := req.StartsAt.UTC(), req.EndsAt.UTC()
	if err := s.validateAppointmentTime(start, end); err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, apt.DoctorID, start, end, &apt.ID); err != nil {
		return nil, err
	}

	before := apt.StartsAt
	apt.StartsAt, apt.EndsAt = start, end
	apt.ReminderSent = false
	if err := s.store.Appointments.Update(ctx, apt); err != nil {
		return nil, service.FromRepo("appointment", err)
	}
	s.auditor.Record(ctx, actor.ID, model.AuditActionUpdate, "appointment", apt.ID, map[string]interface{}{
		"starts_at": map[string]interface{}{"old": before, "new": start},
	})
	return apt, nil
}

// Cancel may be called by either participant. The other side is notified.
func (s *Service) Cancel(ctx context.Context, actor service.Actor, id uuid.UUID, reason string) (*model.Appointment, error) {
	apt, err := s.scheduled(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	apt.Status = model.AppointmentStatusCancelled
	apt.CancelReason = &reason
	if err := s.store.Appointments.Update(ctx, apt); err != nil {
		return nil, service.FromRepo("appointment", err)
	}

	s.events.Record(ctx, model.EventAppointmentCancelled, apt)
	s.auditor.Record(ctx, actor.ID, model.AuditActionUpdate, "appointment", apt.ID, map[string]interface{}{
		"status":        apt.Status,
		"cancel_reason": reason,
	})

	if patient, doctor, err := s.participants(ctx, apt); err == nil {
		s.notifier.AppointmentCancelled(ctx, patient, doctor, apt)
	}
	return apt, nil
}

func (s *Service) Complete(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.scheduled(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	apt.Status = model.AppointmentStatusCompleted
	if err := s.store.Appointments.Update(ctx, apt); err != nil {
		return nil, service.FromRepo("appointment", err)
	}
	s.auditor.Record(ctx, actor.ID, model.AuditActionUpdate, "appointment", apt.ID, map[string]interface{}{"status": apt.Status})
	return apt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	list, err := s.store.Appointments.List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

func (s *Service) participants(ctx context.Context, apt *model.Appointment) (*model.User, *model.User, error) {
	patient, err := s.store.Users.Get(ctx, apt.PatientID)
	if err != nil {
		return nil, nil, err
	}
	doctor, err := s.store.Users.Get(ctx, apt.DoctorID)
	if err != nil {
		return nil, nil, err
	}
	return patient, doctor, nil
}

// SendReminders notifies patients of scheduled appointments starting within
// lead and flags them so each appointment is reminded once.
func (s *Service) SendReminders(ctx context.Context, lead time.Duration) (int, error) {
	now := s.now()
	due, err := s.store.Appointments.ListDueReminders(ctx, now, now.Add(lead))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, apt := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		patient, doctor, err := s.participants(ctx, apt)
		if err != nil {
			log.Error().Err(err).Str("appointment_id", apt.ID.String()).Msg("Failed to load appointment participants")
			continue
		}
		if err := s.notifier.AppointmentReminder(ctx, patient, doctor, apt); err != nil {
			continue
		}
		apt.ReminderSent = true
		if err := s.store.Appointments.Update(ctx, apt); err != nil {
			log.Error().Err(err).Str("appointment_id", apt.ID.String()).Msg("Failed to flag reminder as sent")
			continue
		}
		sent++
	}
	return sent, nil
}
