package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/security"
)

const (
	maxSlugLength   = 60
	maxSlugSuffixes = 100
	publicCacheTTL  = 5 * time.Minute
)

type Service struct {
	clinicRepo repository.ClinicRepository
	userRepo   repository.UserRepository
	limits     service.LimitChecker
	events     event.Emitter
	cache      *cache.Cache
}

func NewService(clinicRepo repository.ClinicRepository, userRepo repository.UserRepository,
	limits service.LimitChecker, events event.Emitter, c *cache.Cache) *Service {
	if c == nil {
		c = cache.New(publicCacheTTL, 10*time.Minute)
	}
	return &Service{
		clinicRepo: clinicRepo,
		userRepo:   userRepo,
		limits:     limits,
		events:     events,
		cache:      c,
	}
}

// Slugify lower-cases name and keeps ASCII letters and digits, joining the
// rest with single dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "clinic"
	}
	return slug
}

// uniqueSlug appends -2, -3, ... to base until no other clinic uses it.
func (s *Service) uniqueSlug(ctx context.Context, base string, excludeID uuid.UUID) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugSuffixes+1; i++ {
		exists, err := s.clinicRepo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", apperrors.Internal(err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	suffix, err := security.RandomString("abcdefghijkmnpqrstuvwxyz23456789", 6)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return base + "-" + suffix, nil
}

func cacheKey(slug string) string { return "clinic:slug:" + slug }

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateClinicRequest) (*model.Clinic, error) {
	base := req.Slug
	if base == "" {
		base = Slugify(req.Name)
	}
	slug, err := s.uniqueSlug(ctx, base, uuid.Nil)
	if err != nil {
		return nil, err
	}

	clinic := &model.Clinic{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Description: req.Description,
		Phone:       req.Phone,
		Address:     req.Address,
		LogoURL:     req.LogoURL,
	}
	if err := s.clinicRepo.Create(ctx, clinic); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Conflict("clinic slug already taken", err)
		}
		return nil, apperrors.Internal(err)
	}
	s.events.Record(ctx, model.EventClinicCreated, clinic)
	return clinic, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	clinic, err := s.clinicRepo.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepo("clinic", err)
	}
	return clinic, nil
}

// authorize loads the clinic and checks that actor is a member (or its owner when ownerOnly).
func (s *Service) authorize(ctx context.Context, actor service.Actor, id uuid.UUID, ownerOnly bool) (*model.Clinic, error) {
	clinic, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || clinic.OwnerID == actor.ID {
		return clinic, nil
	}
	if ownerOnly {
		return nil, apperrors.Forbidden("only the clinic owner can do this")
	}
	if _, err := s.clinicRepo.GetMember(ctx, id, actor.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Forbidden("not a member of this clinic")
		}
		return nil, apperrors.Internal(err)
	}
	return clinic, nil
}

func (s *Service) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Clinic, error) {
	return s.authorize(ctx, actor, id, false)
}

// GetBySlug returns the public clinic page; results are cached.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.PublicClinic, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if v, ok := s.cache.Get(cacheKey(slug)); ok {
		return v.(*model.PublicClinic), nil
	}

	clinic, err := s.clinicRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, service.FromRepo("clinic", err)
	}
	members, err := s.clinicRepo.ListMembers(ctx, clinic.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	page := &model.PublicClinic{
		Name:        clinic.Name,
		Slug:        clinic.Slug,
		Description: clinic.Description,
		Phone:       clinic.Phone,
		Address:     clinic.Address,
		LogoURL:     clinic.LogoURL,
		Doctors:     make([]model.PublicDoctor, 0, len(members)),
	}
	for _, m := range members {
		user, err := s.userRepo.Get(ctx, m.UserID)
		if err != nil || user.Status != model.UserStatusActive {
			continue
		}
		page.Doctors = append(page.Doctors, model.PublicDoctor{Name: user.FullName(), ReferralCode: user.ReferralCode})
	}
	s.cache.Set(cacheKey(slug), page, cache.DefaultExpiration)
	return page, nil
}

func (s *Service) Update(ctx context.Context, actor service.Actor, id uuid.UUID, req *model.UpdateClinicRequest) (*model.Clinic, error) {
	clinic, err := s.authorize(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	oldSlug := clinic.Slug

	if req.Name != nil {
		clinic.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		clinic.Description = *req.Description
	}
	if req.Phone != nil {
		clinic.Phone = *req.Phone
	}
	if req.Address != nil {
		clinic.Address = *req.Address
	}
	if req.LogoURL != nil {
		clinic.LogoURL = *req.LogoURL
	}
	if req.Slug != nil {
		base := *req.Slug
		if base == "" {
			base = Slugify(clinic.Name)
		}
		if clinic.Slug, err = s.uniqueSlug(ctx, base, clinic.ID); err != nil {
			return nil, err
		}
	}

	if err := s.clinicRepo.Update(ctx, clinic); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Conflict("clinic slug already taken", err)
		}
		return nil, service.FromRepo("clinic", err)
	}
	s.cache.Delete(cacheKey(oldSlug))
	s.cache.Delete(cacheKey(clinic.Slug))
	return clinic, nil
}

func (s *Service) Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error {
	clinic, err := s.authorize(ctx, actor, id, true)
	if err != nil {
		return err
	}
	if err := s.clinicRepo.Delete(ctx, id); err != nil {
		return service.FromRepo("clinic", err)
	}
	s.cache.Delete(cacheKey(clinic.Slug))
	return nil
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]*model.Clinic, error) {
	clinics, err := s.clinicRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return clinics, nil
}

func (s *Service) ListMembers(ctx context.Context, actor service.Actor, clinicID uuid.UUID) ([]*model.ClinicMember, error) {
	if _, err := s.authorize(ctx, actor, clinicID, false); err != nil {
		return nil, err
	}
	members, err := s.clinicRepo.ListMembers(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return members, nil
}

// AddMember adds a doctor to the clinic within the owner's plan limit.
func (s *Service) AddMember(ctx context.Context, actor service.Actor, clinicID, userID uuid.UUID) (*model.ClinicMember, error) {
	clinic, err := s.authorize(ctx, actor, clinicID, true)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, service.FromRepo("user", err)
	}
	if user.Role != model.RoleDoctor {
		return nil, apperrors.BadRequest("only doctors can join a clinic", nil)
	}

	count, err := s.clinicRepo.CountMembers(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.limits.CheckCapacity(ctx, clinic.OwnerID, model.ResourceClinicMembers, count); err != nil {
		return nil, err
	}

	member := &model.ClinicMember{ClinicID: clinicID, UserID: userID, Role: model.ClinicRoleDoctor}
	if err := s.clinicRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Conflict("doctor is already a member", err)
		}
		return nil, service.FromRepo("clinic", err)
	}
	s.cache.Delete(cacheKey(clinic.Slug))
	member.FirstName, member.LastName, member.Email = user.FirstName, user.LastName, user.Email
	return member, nil
}

// RemoveMember removes a doctor; the owner cannot be removed. Members may remove themselves.
func (s *Service) RemoveMember(ctx context.Context, actor service.Actor, clinicID, userID uuid.UUID) error {
	ownerOnly := actor.ID != userID
	clinic, err := s.authorize(ctx, actor, clinicID, ownerOnly)
	if err != nil {
		return err
	}
	if userID == clinic.OwnerID {
		return apperrors.BadRequest("the clinic owner cannot be removed", nil)
	}
	if err := s.clinicRepo.RemoveMember(ctx, clinicID, userID); err != nil {
		return service.FromRepo("clinic member", err)
	}
	s.cache.Delete(cacheKey(clinic.Slug))
	return nil
}
