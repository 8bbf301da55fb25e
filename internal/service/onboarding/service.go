package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	"github.com/jwalitptl/clinic-platform/internal/service/audit"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	"github.com/jwalitptl/clinic-platform/internal/service/notification"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/security"
)

const (
	InviteTTL      = 14 * 24 * time.Hour
	inviteTokenLen = 32
)

// PatientAccounts creates and activates the patient account behind an invite.
type PatientAccounts interface {
	ProvisionPatient(ctx context.Context, email, firstName, lastName string) (*model.User, bool, error)
	ActivatePatient(ctx context.Context, userID uuid.UUID, password, firstName, lastName string) (*model.User, error)
}

// Linker creates the doctor-patient relationship once onboarding completes.
type Linker interface {
	Link(ctx context.Context, doctorID uuid.UUID, req *model.LinkPatientRequest) (*model.DoctorPatient, error)
}

type submittedPayload struct {
	InviteID   uuid.UUID `json:"invite_id"`
	ResponseID uuid.UUID `json:"response_id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	PatientID  uuid.UUID `json:"patient_id"`
}

type Service struct {
	store       *repository.Store
	accounts    PatientAccounts
	linker      Linker
	limits      service.LimitChecker
	notifier    *notification.Service
	events      event.Emitter
	auditor     *audit.Service
	encryptor   security.Encryptor
	frontendURL string
	now         func() time.Time
}

func NewService(store *repository.Store, accounts PatientAccounts, linker Linker, limits service.LimitChecker,
	notifier *notification.Service, events event.Emitter, auditor *audit.Service,
	encryptor security.Encryptor, frontendURL string) *Service {
	return &Service{
		store:       store,
		accounts:    accounts,
		linker:      linker,
		limits:      limits,
		notifier:    notifier,
		events:      events,
		auditor:     auditor,
		encryptor:   encryptor,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Templates

func (s *Service) CreateTemplate(ctx context.Context, doctorID uuid.UUID, req *model.OnboardingTemplateRequest) (*model.OnboardingTemplate, error) {
	steps, err := normalizeSteps(req.Steps)
	if err != nil {
		return nil, err
	}
	t := &model.OnboardingTemplate{
		DoctorID:    doctorID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Steps:       steps,
	}

	// a doctor's first template becomes the default
	if !t.IsDefault {
		if _, err := s.store.Onboarding.GetDefaultTemplate(ctx, doctorID); errors.Is(err, repository.ErrNotFound) {
			t.IsDefault = true
		}
	}
	if err := s.store.Onboarding.CreateTemplate(ctx, t); err != nil {
		return nil, apperrors.Internal(err)
	}
	return t, nil
}

func (s *Service) GetTemplate(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.OnboardingTemplate, error) {
	t, err := s.store.Onboarding.GetTemplate(ctx, id)
	if err != nil {
		return nil, service.FromRepo("onboarding template", err)
	}
	if t.DoctorID != actor.ID && !actor.IsAdmin() {
		return nil, apperrors.NotFound("onboarding template", nil)
	}
	return t, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, actor service.Actor, id uuid.UUID, req *model.OnboardingTemplateRequest) (*model.OnboardingTemplate, error) {
	t, err := s.GetTemplate(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	steps, err := normalizeSteps(req.Steps)
	if err != nil {
		return nil, err
	}
	t.Name = strings.TrimSpace(req.Name)
	t.Description = req.Description
	t.Steps = steps
	if req.IsDefault {
		t.IsDefault = true
	}
	if err := s.store.Onboarding.UpdateTemplate(ctx, t); err != nil {
		return nil, service.FromRepo("onboarding template", err)
	}
	return t, nil
}

func (s *Service) SetDefaultTemplate(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.OnboardingTemplate, error) {
	t, err := s.GetTemplate(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	t.IsDefault = true
	if err := s.store.Onboarding.UpdateTemplate(ctx, t); err != nil {
		return nil, service.FromRepo("onboarding template", err)
	}
	return t, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, actor service.Actor, id uuid.UUID) error {
	if _, err := s.GetTemplate(ctx, actor, id); err != nil {
		return err
	}
	return service.FromRepo("onboarding template", s.store.Onboarding.DeleteTemplate(ctx, id))
}

func (s *Service) ListTemplates(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingTemplate, error) {
	list, err := s.store.Onboarding.ListTemplates(ctx, doctorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

// Invites

func (s *Service) inviteTemplate(ctx context.Context, doctorID uuid.UUID, id *uuid.UUID) (*model.OnboardingTemplate, error) {
	if id != nil {
		return s.GetTemplate(ctx, service.Actor{ID: doctorID, Role: model.RoleDoctor}, *id)
	}
	t, err := s.store.Onboarding.GetDefaultTemplate(ctx, doctorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.BadRequest("create an onboarding template first", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return t, nil
}

// SendInvite emails a one-time onboarding link to a prospective patient.
func (s *Service) SendInvite(ctx context.Context, doctorID uuid.UUID, req *model.SendInviteRequest) (*model.OnboardingInvite, error) {
	doctor, err := s.store.Users.Get(ctx, doctorID)
	if err != nil {
		return nil, service.FromRepo("doctor", err)
	}
	tpl, err := s.inviteTemplate(ctx, doctorID, req.TemplateID)
	if err != nil {
		return nil, err
	}

	addr := model.NormalizeEmail(req.Email)
	if err := s.checkCapacity(ctx, doctorID, addr); err != nil {
		return nil, err
	}

	token, err := security.RandomToken(inviteTokenLen)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	inv := &model.OnboardingInvite{
		DoctorID:   doctorID,
		TemplateID: tpl.ID,
		Email:      addr,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Token:      token,
		Status:     model.InvitePending,
		ExpiresAt:  s.now().Add(InviteTTL),
	}
	if err := s.store.Onboarding.CreateInvite(ctx, inv); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.notifier.OnboardingInvite(ctx, inv, doctor.FullName(), s.inviteLink(token))
	s.auditor.Record(ctx, doctorID, model.AuditActionCreate, "onboarding_invite", inv.ID, map[string]interface{}{"email": addr})
	return inv, nil
}

// checkCapacity fails early when accepting the invite would exceed the patient limit.
func (s *Service) checkCapacity(ctx context.Context, doctorID uuid.UUID, addr string) error {
	existing, err := s.store.Users.GetByEmail(ctx, addr)
	switch {
	case err == nil:
		if existing.Role != model.RolePatient {
			return apperrors.Conflict("email belongs to a non-patient account", nil)
		}
		if _, err := s.store.Relationships.Find(ctx, doctorID, existing.ID); err == nil {
			return nil
		}
	case !errors.Is(err, repository.ErrNotFound):
		return apperrors.Internal(err)
	}
	return s.limits.CheckLimit(ctx, doctorID, model.ResourcePatients)
}

func (s *Service) inviteLink(token string) string {
	return s.frontendURL + "/onboarding/" + token
}

func (s *Service) ListInvites(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingInvite, error) {
	list, err := s.store.Onboarding.ListInvites(ctx, doctorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	now := s.now()
	for _, inv := range list {
		inv.Status = inv.EffectiveStatus(now)
	}
	return list, nil
}

func (s *Service) loadInvite(ctx context.Context, token string) (*model.OnboardingInvite, error) {
	if token == "" {
		return nil, apperrors.NotFound("invite", nil)
	}
	inv, err := s.store.Onboarding.GetInviteByToken(ctx, token)
	if err != nil {
		return nil, service.FromRepo("invite", err)
	}
	return inv, nil
}

// GetInvite is the unauthenticated view of an invite for the onboarding form.
func (s *Service) GetInvite(ctx context.Context, token string) (*model.PublicInvite, error) {
	inv, err := s.loadInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	out := &model.PublicInvite{
		Status:    inv.EffectiveStatus(s.now()),
		Email:     inv.Email,
		ExpiresAt: inv.ExpiresAt,
	}
	if doctor, err := s.store.Users.Get(ctx, inv.DoctorID); err == nil {
		out.DoctorName = doctor.FullName()
	}
	if out.Status == model.InvitePending {
		tpl, err := s.store.Onboarding.GetTemplate(ctx, inv.TemplateID)
		if err != nil {
			return nil, service.FromRepo("onboarding template", err)
		}
		out.Template = tpl
	}
	return out, nil
}

// Submit records the questionnaire, activates the patient account and links
// the patient to the inviting doctor.
func (s *Service) Submit(ctx context.Context, token string, req *model.SubmitOnboardingRequest) (*model.OnboardingResponse, error) {
	inv, err := s.loadInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	switch inv.EffectiveStatus(s.now()) {
	case model.InviteCompleted:
		return nil, apperrors.Conflict("invite has already been used", nil)
	case model.InviteExpired:
		return nil, apperrors.BadRequest("invite has expired", nil)
	}

	tpl, err := s.store.Onboarding.GetTemplate(ctx, inv.TemplateID)
	if err != nil {
		return nil, service.FromRepo("onboarding template", err)
	}
	answers, err := validateAnswers(tpl, req.Answers)
	if err != nil {
		return nil, err
	}

	first, last := firstNonEmpty(req.FirstName, inv.FirstName), firstNonEmpty(req.LastName, inv.LastName)
	patient, _, err := s.accounts.ProvisionPatient(ctx, inv.Email, first, last)
	if err != nil {
		return nil, err
	}
	if patient, err = s.accounts.ActivatePatient(ctx, patient.ID, req.Password, first, last); err != nil {
		return nil, err
	}
	if _, err := s.linker.Link(ctx, inv.DoctorID, &model.LinkPatientRequest{PatientID: patient.ID}); err != nil {
		return nil, err
	}

	plain, err := json.Marshal(answers)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	sealed, err := s.encryptor.Encrypt(plain)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	resp := &model.OnboardingResponse{
		InviteID:   inv.ID,
		TemplateID: tpl.ID,
		DoctorID:   inv.DoctorID,
		PatientID:  patient.ID,
		Ciphertext: sealed,
		Answers:    answers,
	}
	if err := s.store.Onboarding.CreateResponse(ctx, resp); err != nil {
		return nil, apperrors.Internal(err)
	}

	completed := s.now()
	inv.Status = model.InviteCompleted
	inv.CompletedAt = &completed
	inv.PatientID = &patient.ID
	if err := s.store.Onboarding.UpdateInvite(ctx, inv); err != nil {
		return nil, service.FromRepo("invite", err)
	}

	s.events.Record(ctx, model.EventOnboardingSubmitted, submittedPayload{
		InviteID:   inv.ID,
		ResponseID: resp.ID,
		DoctorID:   inv.DoctorID,
		PatientID:  patient.ID,
	})
	s.auditor.Record(ctx, patient.ID, model.AuditActionCreate, "onboarding_response", resp.ID, nil)
	return resp, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Responses

func (s *Service) decrypt(r *model.OnboardingResponse) error {
	plain, err := s.encryptor.Decrypt(r.Ciphertext)
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := json.Unmarshal(plain, &r.Answers); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) ListResponses(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingResponse, error) {
	list, err := s.store.Onboarding.ListResponses(ctx, doctorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for _, r := range list {
		if err := s.decrypt(r); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// GetResponse is visible to the doctor, the patient who answered and admins.
func (s *Service) GetResponse(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.OnboardingResponse, error) {
	r, err := s.store.Onboarding.GetResponse(ctx, id)
	if err != nil {
		return nil, service.FromRepo("onboarding response", err)
	}
	if !actor.IsAdmin() && r.DoctorID != actor.ID && r.PatientID != actor.ID {
		return nil, apperrors.NotFound("onboarding response", nil)
	}
	if err := s.decrypt(r); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, actor.ID, model.AuditActionRead, "onboarding_response", r.ID, nil)
	return r, nil
}
