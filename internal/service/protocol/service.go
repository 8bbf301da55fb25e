package protocol

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

var validKinds = map[string]bool{
	model.TaskKindExercise: true,
	model.TaskKindReading:  true,
	model.TaskKindVideo:    true,
	model.TaskKindHabit:    true,
	model.TaskKindQuestion: true,
}

// Reconciler re-derives prescription status after a protocol's days change.
type Reconciler interface {
	ReconcileProtocol(ctx context.Context, protocol *model.Protocol) error
}

type Service struct {
	protocolRepo     repository.ProtocolRepository
	prescriptionRepo repository.PrescriptionRepository
	clinicRepo       repository.ClinicRepository
	limits           service.LimitChecker
	reconciler       Reconciler
}

func NewService(protocolRepo repository.ProtocolRepository, prescriptionRepo repository.PrescriptionRepository,
	clinicRepo repository.ClinicRepository, limits service.LimitChecker) *Service {
	return &Service{
		protocolRepo:     protocolRepo,
		prescriptionRepo: prescriptionRepo,
		clinicRepo:       clinicRepo,
		limits:           limits,
	}
}

func (s *Service) WithReconciler(r Reconciler) *Service {
	s.reconciler = r
	return s
}

// NormalizeDays validates the day/session/task tree, orders it and assigns
// ids to tasks that have none.
func NormalizeDays(days []model.ProtocolDay) (model.ProtocolDays, error) {
	if len(days) == 0 {
		return nil, apperrors.BadRequest("protocol needs at least one day", nil)
	}

	out := make(model.ProtocolDays, len(days))
	copy(out, days)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	if out[0].DayNumber != 1 {
		return nil, apperrors.BadRequest("day numbers must start at 1", nil)
	}

	taskIDs := make(map[string]bool)
	for i := range out {
		day := &out[i]
		if i > 0 && day.DayNumber == out[i-1].DayNumber {
			return nil, apperrors.BadRequest(fmt.Sprintf("day %d appears more than once", day.DayNumber), nil)
		}
		if len(day.Sessions) == 0 {
			return nil, apperrors.BadRequest(fmt.Sprintf("day %d needs at least one session", day.DayNumber), nil)
		}
		sessions := make([]model.ProtocolSession, len(day.Sessions))
		copy(sessions, day.Sessions)
		sort.SliceStable(sessions, func(a, b int) bool { return sessions[a].Order < sessions[b].Order })
		day.Sessions = sessions

		for j := range day.Sessions {
			session := &day.Sessions[j]
			if len(session.Tasks) == 0 {
				return nil, apperrors.BadRequest(fmt.Sprintf("session %q on day %d has no tasks", session.Title, day.DayNumber), nil)
			}
			tasks := make([]model.ProtocolTask, len(session.Tasks))
			copy(tasks, session.Tasks)
			session.Tasks = tasks

			for k := range session.Tasks {
				task := &session.Tasks[k]
				if !validKinds[task.Kind] {
					return nil, apperrors.BadRequest(fmt.Sprintf("task %q has unknown kind %q", task.Title, task.Kind), nil)
				}
				task.ID = strings.TrimSpace(task.ID)
				if task.ID == "" {
					continue
				}
				if taskIDs[task.ID] {
					return nil, apperrors.BadRequest(fmt.Sprintf("task id %q is used more than once", task.ID), nil)
				}
				taskIDs[task.ID] = true
			}
		}
	}

	// second pass so generated ids never collide with supplied ones
	for i := range out {
		for j := range out[i].Sessions {
			for k := range out[i].Sessions[j].Tasks {
				task := &out[i].Sessions[j].Tasks[k]
				if task.ID != "" {
					continue
				}
				for task.ID == "" || taskIDs[task.ID] {
					task.ID = uuid.NewString()[:8]
				}
				taskIDs[task.ID] = true
			}
		}
	}
	return out, nil
}

func (s *Service) checkClinic(ctx context.Context, doctorID uuid.UUID, clinicID *uuid.UUID) error {
	if clinicID == nil {
		return nil
	}
	if _, err := s.clinicRepo.GetMember(ctx, *clinicID, doctorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Forbidden("not a member of this clinic")
		}
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.ProtocolRequest) (*model.Protocol, error) {
	days, err := NormalizeDays(req.Days)
	if err != nil {
		return nil, err
	}
	if err := s.checkClinic(ctx, doctorID, req.ClinicID); err != nil {
		return nil, err
	}
	if err := s.limits.CheckLimit(ctx, doctorID, model.ResourceProtocols); err != nil {
		return nil, err
	}

	p := &model.Protocol{
		DoctorID:    doctorID,
		ClinicID:    req.ClinicID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		IsTemplate:  req.IsTemplate,
		Days:        days,
	}
	if err := s.protocolRepo.Create(ctx, p); err != nil {
		return nil, apperrors.Internal(err)
	}
	return p, nil
}

// canView allows the owner, admins and members of the clinic a template is shared with.
func (s *Service) canView(ctx context.Context, actor service.Actor, p *model.Protocol) bool {
	if actor.IsAdmin() || p.DoctorID == actor.ID {
		return true
	}
	if p.IsTemplate && p.ClinicID != nil {
		_, err := s.clinicRepo.GetMember(ctx, *p.ClinicID, actor.ID)
		return err == nil
	}
	return false
}

func (s *Service) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Protocol, error) {
	p, err := s.protocolRepo.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepo("protocol", err)
	}
	if !s.canView(ctx, actor, p) {
		return nil, apperrors.NotFound("protocol", nil)
	}
	return p, nil
}

func (s *Service) owned(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Protocol, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != actor.ID && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only the protocol owner can change it")
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, actor service.Actor, id uuid.UUID, req *model.ProtocolRequest) (*model.Protocol, error) {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	days, err := NormalizeDays(req.Days)
	if err != nil {
		return nil, err
	}
	if err := s.checkClinic(ctx, p.DoctorID, req.ClinicID); err != nil {
		return nil, err
	}

	p.Title = strings.TrimSpace(req.Title)
	p.Description = req.Description
	p.ClinicID = req.ClinicID
	p.IsTemplate = req.IsTemplate
	p.Days = days
	if err := s.protocolRepo.Update(ctx, p); err != nil {
		return nil, service.FromRepo("protocol", err)
	}
	if s.reconciler != nil {
		if err := s.reconciler.ReconcileProtocol(ctx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Delete is refused while any active or paused prescription uses the protocol.
func (s *Service) Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	open, err := s.prescriptionRepo.CountOpenForProtocol(ctx, id)
	if err != nil {
		return apperrors.Internal(err)
	}
	if open > 0 {
		return apperrors.Conflict(fmt.Sprintf("protocol is assigned to %d patient(s)", open), nil)
	}
	return service.FromRepo("protocol", s.protocolRepo.Delete(ctx, id))
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID, opts model.ListOptions) ([]*model.Protocol, error) {
	protocols, err := s.protocolRepo.ListByDoctor(ctx, doctorID, opts)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return protocols, nil
}

// Duplicate copies a protocol the actor can see into a new protocol they own.
func (s *Service) Duplicate(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Protocol, error) {
	src, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.limits.CheckLimit(ctx, actor.ID, model.ResourceProtocols); err != nil {
		return nil, err
	}
	days, err := NormalizeDays(src.Days)
	if err != nil {
		return nil, err
	}

	p := &model.Protocol{
		DoctorID:    actor.ID,
		Title:       src.Title + " (copy)",
		Description: src.Description,
		Days:        days,
	}
	if src.DoctorID == actor.ID {
		p.ClinicID = src.ClinicID
	}
	if err := s.protocolRepo.Create(ctx, p); err != nil {
		return nil, apperrors.Internal(err)
	}
	return p, nil
}
