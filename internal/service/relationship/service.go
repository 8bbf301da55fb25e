package relationship

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

// PatientProvisioner finds or creates the patient account behind an email.
type PatientProvisioner interface {
	ProvisionPatient(ctx context.Context, email, firstName, lastName string) (*model.User, bool, error)
}

type Service struct {
	relRepo     repository.RelationshipRepository
	userRepo    repository.UserRepository
	limits      service.LimitChecker
	events      event.Emitter
	provisioner PatientProvisioner
}

func NewService(relRepo repository.RelationshipRepository, userRepo repository.UserRepository,
	limits service.LimitChecker, events event.Emitter, provisioner PatientProvisioner) *Service {
	return &Service{
		relRepo:     relRepo,
		userRepo:    userRepo,
		limits:      limits,
		events:      events,
		provisioner: provisioner,
	}
}

// Link connects doctor and patient. Linking an existing pair returns the
// existing relationship, promoting it when primary is requested. A patient's
// first relationship is always primary.
func (s *Service) Link(ctx context.Context, doctorID uuid.UUID, req *model.LinkPatientRequest) (*model.DoctorPatient, error) {
	patient, err := s.userRepo.Get(ctx, req.PatientID)
	if err != nil {
		return nil, service.FromRepo("patient", err)
	}
	if patient.Role != model.RolePatient {
		return nil, apperrors.BadRequest("user is not a patient", nil)
	}

	existing, err := s.relRepo.Find(ctx, doctorID, req.PatientID)
	switch {
	case err == nil:
		if req.Primary && !existing.IsPrimary {
			if err := s.relRepo.SetPrimary(ctx, existing.ID); err != nil {
				return nil, service.FromRepo("relationship", err)
			}
			existing.IsPrimary = true
		}
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err)
	}

	if err := s.limits.CheckLimit(ctx, doctorID, model.ResourcePatients); err != nil {
		return nil, err
	}

	others, err := s.relRepo.ListForPatient(ctx, req.PatientID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	rel := &model.DoctorPatient{
		DoctorID:  doctorID,
		PatientID: req.PatientID,
		IsPrimary: req.Primary || len(others) == 0,
		Notes:     req.Notes,
	}
	if err := s.relRepo.Create(ctx, rel); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Conflict("patient is already linked", err)
		}
		return nil, apperrors.Internal(err)
	}
	s.events.Record(ctx, model.EventRelationshipLinked, rel)
	return rel, nil
}

// InvitePatient links the patient registered under req.Email, creating a
// pending account first when needed.
func (s *Service) InvitePatient(ctx context.Context, doctorID uuid.UUID, req *model.InvitePatientRequest) (*model.DoctorPatient, *model.User, error) {
	linked := false
	if existing, err := s.userRepo.GetByEmail(ctx, model.NormalizeEmail(req.Email)); err == nil {
		_, ferr := s.relRepo.Find(ctx, doctorID, existing.ID)
		linked = ferr == nil
	}
	if !linked {
		if err := s.limits.CheckLimit(ctx, doctorID, model.ResourcePatients); err != nil {
			return nil, nil, err
		}
	}
	patient, _, err := s.provisioner.ProvisionPatient(ctx, req.Email, req.FirstName, req.LastName)
	if err != nil {
		return nil, nil, err
	}
	rel, err := s.Link(ctx, doctorID, &model.LinkPatientRequest{PatientID: patient.ID, Primary: req.Primary})
	if err != nil {
		return nil, nil, err
	}
	return rel, patient, nil
}

// authorize loads a relationship the actor is a party to.
func (s *Service) authorize(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.DoctorPatient, error) {
	rel, err := s.relRepo.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepo("relationship", err)
	}
	if !actor.IsAdmin() && rel.DoctorID != actor.ID && rel.PatientID != actor.ID {
		return nil, apperrors.NotFound("relationship", nil)
	}
	return rel, nil
}

func (s *Service) SetPrimary(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.DoctorPatient, error) {
	rel, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if rel.IsPrimary {
		return rel, nil
	}
	if err := s.relRepo.SetPrimary(ctx, id); err != nil {
		return nil, service.FromRepo("relationship", err)
	}
	rel.IsPrimary = true
	return rel, nil
}

// Unlink removes the relationship; the patient's most recent remaining
// relationship becomes primary when the removed one was.
func (s *Service) Unlink(ctx context.Context, actor service.Actor, id uuid.UUID) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	return service.FromRepo("relationship", s.relRepo.Delete(ctx, id))
}

// UnlinkPatient removes the doctor's relationship with patientID.
func (s *Service) UnlinkPatient(ctx context.Context, doctorID, patientID uuid.UUID) error {
	rel, err := s.relRepo.Find(ctx, doctorID, patientID)
	if err != nil {
		return service.FromRepo("relationship", err)
	}
	return service.FromRepo("relationship", s.relRepo.Delete(ctx, rel.ID))
}

func (s *Service) ListPatients(ctx context.Context, doctorID uuid.UUID, opts model.ListOptions) ([]*model.LinkedUser, error) {
	patients, err := s.relRepo.ListPatients(ctx, doctorID, opts)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return patients, nil
}

func (s *Service) ListDoctors(ctx context.Context, patientID uuid.UUID) ([]*model.LinkedUser, error) {
	doctors, err := s.relRepo.ListDoctors(ctx, patientID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return doctors, nil
}

// GetPatient returns a linked patient's account.
func (s *Service) GetPatient(ctx context.Context, doctorID, patientID uuid.UUID) (*model.User, error) {
	if err := service.EnsureLinked(ctx, s.relRepo, doctorID, patientID); err != nil {
		return nil, apperrors.NotFound("patient", err)
	}
	patient, err := s.userRepo.Get(ctx, patientID)
	if err != nil {
		return nil, service.FromRepo("patient", err)
	}
	return patient, nil
}
