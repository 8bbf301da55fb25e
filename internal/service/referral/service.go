package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/security"
)

// Alphabet leaves out characters that are easy to misread (0/O, 1/I).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	defaultCodeLength  = 8
	defaultMaxAttempts = 10
)

var ErrCodeSpaceExhausted = errors.New("referral code space exhausted")

type Service struct {
	users       repository.UserRepository
	referrals   repository.ReferralRepository
	length      int
	maxAttempts int
	generate    func(length int) (string, error)
}

func NewService(users repository.UserRepository, referrals repository.ReferralRepository, cfg config.ReferralConfig) *Service {
	s := &Service{
		users:       users,
		referrals:   referrals,
		length:      cfg.CodeLength,
		maxAttempts: cfg.MaxAttempts,
		generate: func(length int) (string, error) {
			return security.RandomString(Alphabet, length)
		},
	}
	if s.length <= 0 {
		s.length = defaultCodeLength
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	return s
}

// Normalize upper-cases a user-supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateUniqueCode draws random codes until one is unused.
func (s *Service) GenerateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < s.maxAttempts; i++ {
		code, err := s.generate(s.length)
		if err != nil {
			return "", err
		}
		exists, err := s.users.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Resolve returns the owner of code; unknown codes are a bad request.
func (s *Service) Resolve(ctx context.Context, code string) (*model.User, error) {
	user, err := s.users.GetByReferralCode(ctx, Normalize(code))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.BadRequest("unknown referral code", nil)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// Lookup is the public view of a referral code.
func (s *Service) Lookup(ctx context.Context, code string) (*model.ReferralLookup, error) {
	user, err := s.users.GetByReferralCode(ctx, Normalize(code))
	if err != nil {
		return nil, service.FromRepo("referral code", err)
	}
	if user.Status == model.UserStatusDisabled {
		return nil, apperrors.NotFound("referral code", nil)
	}
	return &model.ReferralLookup{
		Code:         user.ReferralCode,
		ReferrerName: user.FullName(),
		ReferrerRole: user.Role,
	}, nil
}

// Record attributes referred's sign-up to referrer.
func (s *Service) Record(ctx context.Context, referrer, referred *model.User) error {
	r := &model.Referral{
		ID:             uuid.New(),
		ReferrerID:     referrer.ID,
		ReferredUserID: referred.ID,
		Code:           referrer.ReferralCode,
	}
	if err := s.referrals.Create(ctx, r); err != nil {
		return fmt.Errorf("failed to record referral: %w", err)
	}
	return nil
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]*model.Referral, error) {
	refs, err := s.referrals.ListByReferrer(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return refs, nil
}

// Stats counts referrals in total and per calendar month (YYYY-MM).
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*model.ReferralStats, error) {
	refs, err := s.ListMine(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &model.ReferralStats{Total: len(refs), ByMonth: make(map[string]int)}
	for _, r := range refs {
		stats.ByMonth[r.CreatedAt.UTC().Format("2006-01")]++
	}
	return stats, nil
}
