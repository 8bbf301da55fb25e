package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	"github.com/jwalitptl/clinic-platform/internal/service/audit"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	"github.com/jwalitptl/clinic-platform/internal/service/notification"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

const dateLayout = "2006-01-02"

var errReassigned = apperrors.Conflict("protocol has been assigned to the patient again", nil)

type statusChange struct {
	PrescriptionID uuid.UUID `json:"prescription_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
}

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

func (s *Service) today() time.Time {
	return truncateDay(s.now())
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Assign prescribes one of the doctor's protocols to a linked patient.
func (s *Service) Assign(ctx context.Context, doctorID uuid.UUID, req *model.AssignProtocolRequest) (*model.Prescription, error) {
	if err := service.EnsureLinked(ctx, s.store.Relationships, doctorID, req.PatientID); err != nil {
		return nil, err
	}
	protocol, err := s.store.Protocols.Get(ctx, req.ProtocolID)
	if err != nil {
		return nil, service.FromRepo("protocol", err)
	}
	if protocol.DoctorID != doctorID {
		return nil, apperrors.NotFound("protocol", nil)
	}

	open, err := s.store.Prescriptions.HasOpen(ctx, req.PatientID, req.ProtocolID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if open {
		return nil, apperrors.Conflict("protocol is already assigned to this patient", nil)
	}

	start := s.today()
	if req.StartDate != "" {
		start, err = time.Parse(dateLayout, req.StartDate)
		if err != nil {
			return nil, apperrors.BadRequest("start_date must be YYYY-MM-DD", err)
		}
	}

	p := &model.Prescription{
		DoctorID:   doctorID,
		PatientID:  req.PatientID,
		ProtocolID: req.ProtocolID,
		Status:     model.PrescriptionActive,
		StartDate:  start,
		Notes:      req.Notes,
	}
	if err := s.store.Prescriptions.Create(ctx, p); err != nil {
		return nil, service.FromRepo("prescription", err)
	}

	s.events.Record(ctx, model.EventPrescriptionAssigned, p)
	s.auditor.Record(ctx, doctorID, model.AuditActionCreate, "prescription", p.ID, map[string]interface{}{
		"patient_id":  p.PatientID,
		"protocol_id": p.ProtocolID,
		"start_date":  start.Format(dateLayout),
	})

	patient, perr := s.store.Users.Get(ctx, p.PatientID)
	doctor, derr := s.store.Users.Get(ctx, doctorID)
	if perr == nil && derr == nil {
		s.notifier.ProtocolAssigned(ctx, patient, doctor, protocol, start)
	}
	return p, nil
}

// Get returns the prescription to its doctor, its patient or an admin.
func (s *Service) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Prescription, error) {
	p, err := s.store.Prescriptions.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepo("prescription", err)
	}
	if !actor.IsAdmin() && p.DoctorID != actor.ID && p.PatientID != actor.ID {
		return nil, apperrors.NotFound("prescription", nil)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filters *model.PrescriptionFilters) ([]*model.Prescription, error) {
	list, err := s.store.Prescriptions.List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

// UpdateStatus pauses, resumes or abandons a prescription. Completion only
// happens through task progress.
func (s *Service) UpdateStatus(ctx context.Context, actor service.Actor, id uuid.UUID, status string) (*model.Prescription, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.IsPatient() && status != model.PrescriptionAbandoned {
		return nil, apperrors.Forbidden("patients can only abandon a prescription")
	}
	if status == model.PrescriptionCompleted || !model.CanTransition(p.Status, status) {
		return nil, apperrors.BadRequest("cannot move prescription from "+p.Status+" to "+status, nil)
	}

	if err := s.setStatus(ctx, p, status); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, actor.ID, model.AuditActionUpdate, "prescription", p.ID, map[string]interface{}{"status": status})
	return p, nil
}

func (s *Service) setStatus(ctx context.Context, p *model.Prescription, status string) error {
	from := p.Status
	p.Status = status
	if status == model.PrescriptionCompleted {
		at := s.now()
		p.CompletedAt = &at
	} else {
		p.CompletedAt = nil
	}
	if err := s.store.Prescriptions.Update(ctx, p); err != nil {
		return service.FromRepo("prescription", err)
	}
	s.events.Record(ctx, model.EventPrescriptionStatusChanged, statusChange{
		PrescriptionID: p.ID,
		PatientID:      p.PatientID,
		DoctorID:       p.DoctorID,
		From:           from,
		To:             status,
	})
	return nil
}

func (s *Service) patientPrescription(ctx context.Context, patientID, id uuid.UUID) (*model.Prescription, *model.Protocol, error) {
	p, err := s.store.Prescriptions.Get(ctx, id)
	if err != nil {
		return nil, nil, service.FromRepo("prescription", err)
	}
	if p.PatientID != patientID {
		return nil, nil, apperrors.NotFound("prescription", nil)
	}
	protocol, err := s.store.Protocols.Get(ctx, p.ProtocolID)
	if err != nil {
		return nil, nil, service.FromRepo("protocol", err)
	}
	return p, protocol, nil
}

// CompleteTask marks a task done. Completing a task twice is a no-op. The
// prescription completes once every task of the protocol is done.
func (s *Service) CompleteTask(ctx context.Context, patientID, id uuid.UUID, taskID string) (*model.PrescriptionProgress, error) {
	p, protocol, err := s.patientPrescription(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PrescriptionActive {
		return nil, apperrors.BadRequest("prescription is not active", nil)
	}
	if !protocol.HasTask(taskID) {
		return nil, apperrors.NotFound("task", nil)
	}

	if _, err := s.store.Prescriptions.AddCompletion(ctx, &model.TaskCompletion{
		PrescriptionID: p.ID,
		TaskID:         taskID,
		CompletedAt:    s.now(),
	}); err != nil {
		return nil, apperrors.Internal(err)
	}

	completions, err := s.store.Prescriptions.ListCompletions(ctx, p.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	prog := s.progress(p, protocol, completions)
	if err := s.derive(ctx, prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// derive completes an active prescription whose tasks are all done.
func (s *Service) derive(ctx context.Context, prog *model.PrescriptionProgress) error {
	p := prog.Prescription
	if p.Status != model.PrescriptionActive || prog.TotalTasks == 0 || prog.CompletedTasks < prog.TotalTasks {
		return nil
	}
	return s.setStatus(ctx, p, model.PrescriptionCompleted)
}

// ReconcileProtocol re-derives the status of the protocol's active
// prescriptions after its days changed.
func (s *Service) ReconcileProtocol(ctx context.Context, protocol *model.Protocol) error {
	list, err := s.List(ctx, &model.PrescriptionFilters{ProtocolID: &protocol.ID, Status: model.PrescriptionActive})
	if err != nil {
		return err
	}
	for _, p := range list {
		completions, err := s.store.Prescriptions.ListCompletions(ctx, p.ID)
		if err != nil {
			return apperrors.Internal(err)
		}
		if err := s.derive(ctx, s.progress(p, protocol, completions)); err != nil {
			return err
		}
	}
	return nil
}

// UncompleteTask reverts a task. A completed prescription becomes active
// again unless the protocol has since been assigned to the patient anew.
func (s *Service) UncompleteTask(ctx context.Context, patientID, id uuid.UUID, taskID string) (*model.PrescriptionProgress, error) {
	p, protocol, err := s.patientPrescription(ctx, patientID, id)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case model.PrescriptionActive:
		if _, err := s.store.Prescriptions.RemoveCompletion(ctx, p.ID, taskID); err != nil {
			return nil, apperrors.Internal(err)
		}
	case model.PrescriptionCompleted:
		if err := s.reopen(ctx, p, taskID); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.BadRequest("prescription is not active", nil)
	}

	completions, err := s.store.Prescriptions.ListCompletions(ctx, p.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.progress(p, protocol, completions), nil
}

func (s *Service) reopen(ctx context.Context, p *model.Prescription, taskID string) error {
	open, err := s.store.Prescriptions.HasOpen(ctx, p.PatientID, p.ProtocolID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if open {
		return errReassigned
	}

	completedAt := p.CompletedAt
	p.Status = model.PrescriptionActive
	p.CompletedAt = nil
	removed, err := s.store.Prescriptions.Reopen(ctx, p, taskID)
	if !removed {
		p.Status = model.PrescriptionCompleted
		p.CompletedAt = completedAt
	}
	switch {
	case errors.Is(err, repository.ErrConflict):
		return errReassigned
	case err != nil:
		return apperrors.Internal(err)
	case !removed:
		return nil
	}

	s.events.Record(ctx, model.EventPrescriptionStatusChanged, statusChange{
		PrescriptionID: p.ID,
		PatientID:      p.PatientID,
		DoctorID:       p.DoctorID,
		From:           model.PrescriptionCompleted,
		To:             model.PrescriptionActive,
	})
	return nil
}

func (s *Service) Progress(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.PrescriptionProgress, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, p)
}

func (s *Service) load(ctx context.Context, p *model.Prescription) (*model.PrescriptionProgress, error) {
	protocol, err := s.store.Protocols.Get(ctx, p.ProtocolID)
	if err != nil {
		return nil, service.FromRepo("protocol", err)
	}
	completions, err := s.store.Prescriptions.ListCompletions(ctx, p.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.progress(p, protocol, completions), nil
}

// Today returns progress for each of the patient's active prescriptions.
func (s *Service) Today(ctx context.Context, patientID uuid.UUID) ([]*model.PrescriptionProgress, error) {
	list, err := s.List(ctx, &model.PrescriptionFilters{PatientID: &patientID, Status: model.PrescriptionActive})
	if err != nil {
		return nil, err
	}
	out := make([]*model.PrescriptionProgress, 0, len(list))
	for _, p := range list {
		prog, err := s.load(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, prog)
	}
	return out, nil
}

// progress derives counters and the current day. The current day is the
// number of days since the start date plus one, clamped to the protocol length.
func (s *Service) progress(p *model.Prescription, protocol *model.Protocol, completions []*model.TaskCompletion) *model.PrescriptionProgress {
	prog := &model.PrescriptionProgress{
		Prescription:  p,
		ProtocolTitle: protocol.Title,
		TotalDays:     len(protocol.Days),
		TotalTasks:    protocol.TaskCount(),
		CompletedIDs:  make([]string, 0, len(completions)),
	}
	for _, c := range completions {
		if protocol.HasTask(c.TaskID) {
			prog.CompletedIDs = append(prog.CompletedIDs, c.TaskID)
		}
	}
	prog.CompletedTasks = len(prog.CompletedIDs)
	if prog.TotalTasks > 0 {
		prog.Percent = float64(prog.CompletedTasks) * 100 / float64(prog.TotalTasks)
	}

	if prog.TotalDays == 0 {
		return prog
	}
	day := int(s.today().Sub(truncateDay(p.StartDate)).Hours()/24) + 1
	if day < 1 {
		day = 1
	}
	if day > prog.TotalDays {
		day = prog.TotalDays
	}
	prog.CurrentDay = day
	today := protocol.Days[day-1]
	prog.Today = &today
	return prog
}
