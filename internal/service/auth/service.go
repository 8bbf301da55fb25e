package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	"github.com/jwalitptl/clinic-platform/internal/service/audit"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	"github.com/jwalitptl/clinic-platform/internal/service/notification"
	"github.com/jwalitptl/clinic-platform/internal/service/referral"
	"github.com/jwalitptl/clinic-platform/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/security"
)

var ErrInvalidCredentials = apperrors.Unauthorized("invalid credentials")

const (
	defaultMaxLoginAttempts = 5
	defaultLockoutDuration  = 15 * time.Minute
)

type Config struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	AccessTTL        time.Duration
}

type Service struct {
	userRepo  repository.UserRepository
	referrals *referral.Service
	jwtSvc    auth.JWTService
	hasher    security.PasswordHasher
	notifier  *notification.Service
	events    event.Emitter
	auditor   *audit.Service
	cfg       Config
	now       func() time.Time
}

func NewService(userRepo repository.UserRepository, referrals *referral.Service, jwtSvc auth.JWTService,
	hasher security.PasswordHasher, notifier *notification.Service, events event.Emitter, auditor *audit.Service, cfg Config) *Service {
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = defaultMaxLoginAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaultLockoutDuration
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	return &Service{
		userRepo:  userRepo,
		referrals: referrals,
		jwtSvc:    jwtSvc,
		hasher:    hasher,
		notifier:  notifier,
		events:    events,
		auditor:   auditor,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type registeredPayload struct {
	UserID     uuid.UUID  `json:"user_id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	ReferredBy *uuid.UUID `json:"referred_by,omitempty"`
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error) {
	if req.Role != model.RoleDoctor && req.Role != model.RolePatient {
		return nil, apperrors.BadRequest("role must be doctor or patient", nil)
	}
	email := model.NormalizeEmail(req.Email)
	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.Role == model.RolePatient && existing.Status == model.UserStatusPending &&
		req.Role == model.RolePatient:
		return s.claim(ctx, existing, req)
	case err == nil:
		return nil, apperrors.Conflict("email already registered", nil)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err)
	}

	var referrer *model.User
	if strings.TrimSpace(req.ReferralCode) != "" {
		r, err := s.referrals.Resolve(ctx, req.ReferralCode)
		if err != nil {
			return nil, err
		}
		referrer = r
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         req.Role,
		Status:       model.UserStatusActive,
		Timezone:     "UTC",
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	if referrer != nil {
		if err := s.referrals.Record(ctx, referrer, user); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	s.notifier.Welcome(ctx, user)

	return s.issueTokens(user)
}

// claim activates a pending patient created by a doctor's invite. The
// account keeps its id, referral code and doctor links.
func (s *Service) claim(ctx context.Context, user *model.User, req *model.RegisterRequest) (*model.TokenResponse, error) {
	var referrer *model.User
	if strings.TrimSpace(req.ReferralCode) != "" && user.ReferredBy == nil {
		r, err := s.referrals.Resolve(ctx, req.ReferralCode)
		if err != nil {
			return nil, err
		}
		referrer = r
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = hash
	user.Status = model.UserStatusActive
	if name := strings.TrimSpace(req.FirstName); name != "" {
		user.FirstName = name
	}
	if name := strings.TrimSpace(req.LastName); name != "" {
		user.LastName = name
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, service.FromRepo("user", err)
	}

	if referrer != nil {
		if err := s.referrals.Record(ctx, referrer, user); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	s.auditor.Record(ctx, user.ID, model.AuditActionUpdate, model.AuditEntityUser, user.ID, map[string]interface{}{
		"status": model.UserStatusActive,
		"via":    "registration",
	})
	s.notifier.Welcome(ctx, user)
	return s.issueTokens(user)
}

// create assigns a referral code, stores the user and records the sign-up.
func (s *Service) create(ctx context.Context, user *model.User) error {
	code, err := s.referrals.GenerateUniqueCode(ctx)
	if err != nil {
		return apperrors.Internal(err)
	}
	user.ReferralCode = code
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperrors.Conflict("email already registered", err)
		}
		return apperrors.Internal(err)
	}

	s.events.Record(ctx, model.EventUserRegistered, registeredPayload{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		ReferredBy: user.ReferredBy,
	})
	s.auditor.Record(ctx, user.ID, model.AuditActionCreate, model.AuditEntityUser, user.ID, map[string]interface{}{
		"role": user.Role,
	})
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, security.ErrPasswordTooShort) {
		return "", apperrors.BadRequest(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), nil)
	}
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return hash, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, model.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now()
	if user.IsLocked(now) {
		return nil, apperrors.Forbidden("account is locked, please try again later")
	}
	if user.Status == model.UserStatusDisabled {
		return nil, apperrors.Forbidden("account is disabled")
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		user.FailedLoginAttempts++
		if user.FailedLoginAttempts >= s.cfg.MaxLoginAttempts {
			until := now.Add(s.cfg.LockoutDuration)
			user.LockedUntil = &until
			user.FailedLoginAttempts = 0
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update login attempts: %w", err)
		}
		return nil, ErrInvalidCredentials
	}

	// Reset login attempts on successful login
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to update login timestamp: %w", err))
	}
	s.auditor.Record(ctx, user.ID, model.AuditActionLogin, model.AuditEntityUser, user.ID, nil)

	return s.issueTokens(user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	if user.Status == model.UserStatusDisabled {
		return nil, apperrors.Forbidden("account is disabled")
	}
	return s.issueTokens(user)
}

func (s *Service) issueTokens(user *model.User) (*model.TokenResponse, error) {
	sub := auth.Subject{UserID: user.ID, Email: user.Email, Role: user.Role}
	access, err := s.jwtSvc.GenerateAccessToken(sub)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate access token: %w", err))
	}
	refresh, err := s.jwtSvc.GenerateRefreshToken(sub)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate refresh token: %w", err))
	}
	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
		User:         user,
	}, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, service.FromRepo("user", err)
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, apperrors.BadRequest("unknown timezone", err)
		}
		user.Timezone = *req.Timezone
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, service.FromRepo("user", err)
	}
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req *model.ChangePasswordRequest) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperrors.BadRequest("current password is incorrect", nil)
	}
	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return service.FromRepo("user", err)
	}
	s.auditor.Record(ctx, user.ID, model.AuditActionUpdate, model.AuditEntityUser, user.ID, map[string]interface{}{
		"field": "password",
	})
	return nil
}

func (s *Service) ListUsers(ctx context.Context, filters *model.UserFilters) ([]*model.User, int, error) {
	users, total, err := s.userRepo.List(ctx, filters)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return users, total, nil
}

// SetStatus enables or disables an account.
func (s *Service) SetStatus(ctx context.Context, actorID, userID uuid.UUID, status string) (*model.User, error) {
	if status != model.UserStatusActive && status != model.UserStatusDisabled {
		return nil, apperrors.BadRequest("status must be active or disabled", nil)
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Status = status
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, service.FromRepo("user", err)
	}
	s.auditor.Record(ctx, actorID, model.AuditActionUpdate, model.AuditEntityUser, user.ID, map[string]interface{}{
		"status": status,
	})
	return user, nil
}

// ProvisionPatient returns the patient registered under email, creating a
// pending account without a password when none exists. created reports
// whether a new account was made.
func (s *Service) ProvisionPatient(ctx context.Context, email, firstName, lastName string) (user *model.User, created bool, err error) {
	email = model.NormalizeEmail(email)
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != model.RolePatient {
			return nil, false, apperrors.Conflict("email belongs to a non-patient account", nil)
		}
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperrors.Internal(err)
	}

	user = &model.User{
		Email:     email,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Role:      model.RolePatient,
		Status:    model.UserStatusPending,
	}
	if err := s.create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// ActivatePatient sets the password of a pending patient and activates the account.
// Names are only filled in when given.
func (s *Service) ActivatePatient(ctx context.Context, userID uuid.UUID, password, firstName, lastName string) (*model.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if firstName != "" {
		user.FirstName = strings.TrimSpace(firstName)
	}
	if lastName != "" {
		user.LastName = strings.TrimSpace(lastName)
	}
	if user.Status == model.UserStatusPending {
		if password == "" {
			return nil, apperrors.BadRequest("password is required to activate the account", nil)
		}
		hash, err := s.hashPassword(password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		user.Status = model.UserStatusActive
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, service.FromRepo("user", err)
	}
	if user.Status == model.UserStatusActive && password != "" {
		s.notifier.Welcome(ctx, user)
	}
	return user, nil
}

// CreateAdmin creates a platform administrator, or promotes the existing account.
func (s *Service) CreateAdmin(ctx context.Context, email, password, firstName, lastName string) (*model.User, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	email = model.NormalizeEmail(email)
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		existing.Role = model.RoleAdmin
		existing.Status = model.UserStatusActive
		existing.PasswordHash = hash
		if err := s.userRepo.Update(ctx, existing); err != nil {
			return nil, service.FromRepo("user", err)
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Email:         email,
		PasswordHash:  hash,
		FirstName:     firstName,
		LastName:      lastName,
		Role:          model.RoleAdmin,
		Status:        model.UserStatusActive,
		EmailVerified: true,
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ResetPassword replaces the password of the account registered under email
// and clears any login lockout.
func (s *Service) ResetPassword(ctx context.Context, email, password string) error {
	user, err := s.userRepo.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return service.FromRepo("user", err)
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return service.FromRepo("user", err)
	}
	s.auditor.Record(ctx, user.ID, model.AuditActionUpdate, model.AuditEntityUser, user.ID, map[string]interface{}{
		"field": "password",
		"via":   "admin",
	})
	return nil
}
