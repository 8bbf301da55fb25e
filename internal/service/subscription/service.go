package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

const (
	plansCacheKey = "plans"
	trialPeriod   = 14 * 24 * time.Hour
)

var limitedResources = []string{
	model.ResourcePatients,
	model.ResourceProtocols,
	model.ResourceCourses,
	model.ResourceClinicMembers,
}

type Service struct {
	subs          repository.SubscriptionRepository
	relationships repository.RelationshipRepository
	protocols     repository.ProtocolRepository
	courses       repository.CourseRepository
	clinics       repository.ClinicRepository
	events        event.Emitter
	cache         *cache.Cache
	now           func() time.Time
}

func NewService(store *repository.Store, events event.Emitter, c *cache.Cache) *Service {
	if c == nil {
		c = cache.New(5*time.Minute, 10*time.Minute)
	}
	return &Service{
		subs:          store.Subscriptions,
		relationships: store.Relationships,
		protocols:     store.Protocols,
		courses:       store.Courses,
		clinics:       store.Clinics,
		events:        events,
		cache:         c,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SeedPlans upserts the default catalog.
func (s *Service) SeedPlans(ctx context.Context) error {
	for _, p := range model.DefaultPlans() {
		if err := s.subs.UpsertPlan(ctx, p); err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", p.Code, err)
		}
	}
	s.cache.Delete(plansCacheKey)
	return nil
}

func (s *Service) ListPlans(ctx context.Context) ([]*model.Plan, error) {
	if v, ok := s.cache.Get(plansCacheKey); ok {
		return v.([]*model.Plan), nil
	}
	plans, err := s.subs.ListPlans(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(plans) == 0 {
		plans = model.DefaultPlans()
	}
	s.cache.Set(plansCacheKey, plans, cache.DefaultExpiration)
	return plans, nil
}

// UpsertPlan creates or replaces a plan and invalidates the catalog cache.
func (s *Service) UpsertPlan(ctx context.Context, plan *model.Plan) error {
	if plan.Interval == "" {
		plan.Interval = "month"
	}
	if err := s.subs.UpsertPlan(ctx, plan); err != nil {
		return apperrors.Internal(err)
	}
	s.cache.Delete(plansCacheKey)
	return nil
}

func (s *Service) Plan(ctx context.Context, code string) (*model.Plan, error) {
	plans, err := s.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, apperrors.NotFound("plan", nil)
}

// current returns the doctor's subscription (nil when none) and the plan it grants.
func (s *Service) current(ctx context.Context, doctorID uuid.UUID) (*model.Subscription, *model.Plan, error) {
	sub, err := s.subs.GetByDoctor(ctx, doctorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.Internal(err)
	}
	if err != nil {
		sub = nil
	}

	code := model.PlanFree
	if sub != nil && sub.Live() {
		code = sub.PlanCode
	}
	plan, err := s.Plan(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	return sub, plan, nil
}

func (s *Service) Overview(ctx context.Context, doctorID uuid.UUID) (*model.SubscriptionOverview, error) {
	sub, plan, err := s.current(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	usage, err := s.Usage(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return &model.SubscriptionOverview{Subscription: sub, Plan: plan, Usage: *usage}, nil
}

// Usage counts the doctor's limited resources. Clinic members are counted
// on the doctor's largest owned clinic.
func (s *Service) Usage(ctx context.Context, doctorID uuid.UUID) (*model.Usage, error) {
	var u model.Usage
	var err error
	if u.Patients, err = s.relationships.CountPatients(ctx, doctorID); err != nil {
		return nil, apperrors.Internal(err)
	}
	if u.Protocols, err = s.protocols.CountByDoctor(ctx, doctorID); err != nil {
		return nil, apperrors.Internal(err)
	}
	if u.Courses, err = s.courses.CountByDoctor(ctx, doctorID); err != nil {
		return nil, apperrors.Internal(err)
	}

	clinics, err := s.clinics.ListByMember(ctx, doctorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for _, c := range clinics {
		if c.OwnerID != doctorID {
			continue
		}
		n, err := s.clinics.CountMembers(ctx, c.ID)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if n > u.ClinicMembers {
			u.ClinicMembers = n
		}
	}
	return &u, nil
}

// CheckLimit fails with LimitExceeded when one more resource would exceed the doctor's plan.
func (s *Service) CheckLimit(ctx context.Context, doctorID uuid.UUID, resource string) error {
	_, plan, err := s.current(ctx, doctorID)
	if err != nil {
		return err
	}
	limit := plan.Limit(resource)
	if limit == 0 {
		return nil
	}

	var count int
	switch resource {
	case model.ResourcePatients:
		count, err = s.relationships.CountPatients(ctx, doctorID)
	case model.ResourceProtocols:
		count, err = s.protocols.CountByDoctor(ctx, doctorID)
	case model.ResourceCourses:
		count, err = s.courses.CountByDoctor(ctx, doctorID)
	default:
		usage, uerr := s.Usage(ctx, doctorID)
		if uerr != nil {
			return uerr
		}
		count = usage.Of(resource)
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	if count >= limit {
		return apperrors.LimitExceeded(resource, limit)
	}
	return nil
}

// CheckCapacity is CheckLimit for callers that already know the current count.
func (s *Service) CheckCapacity(ctx context.Context, doctorID uuid.UUID, resource string, current int) error {
	_, plan, err := s.current(ctx, doctorID)
	if err != nil {
		return err
	}
	if limit := plan.Limit(resource); limit > 0 && current >= limit {
		return apperrors.LimitExceeded(resource, limit)
	}
	return nil
}

func nextPeriod(from time.Time, interval string) time.Time {
	if interval == "year" {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// Subscribe starts a subscription, or switches plans when one is already live.
// Paid plans start with a trial; the free plan is active immediately.
func (s *Service) Subscribe(ctx context.Context, doctorID uuid.UUID, planCode string) (*model.Subscription, error) {
	plan, err := s.Plan(ctx, planCode)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperrors.BadRequest("plan is not available", nil)
	}

	existing, err := s.subs.GetByDoctor(ctx, doctorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}
	if existing != nil && existing.Live() {
		return s.ChangePlan(ctx, doctorID, planCode)
	}
	if err := s.fitsPlan(ctx, doctorID, plan); err != nil {
		return nil, err
	}

	now := s.now()
	sub := existing
	if sub == nil {
		sub = &model.Subscription{DoctorID: doctorID}
	}
	sub.PlanCode = plan.Code
	sub.CurrentPeriodStart = now
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	if plan.PriceCents > 0 {
		sub.Status = model.SubscriptionTrialing
		sub.CurrentPeriodEnd = now.Add(trialPeriod)
	} else {
		sub.Status = model.SubscriptionActive
		sub.CurrentPeriodEnd = nextPeriod(now, plan.Interval)
	}

	if existing == nil {
		err = s.subs.Create(ctx, sub)
	} else {
		err = s.subs.Update(ctx, sub)
	}
	if err != nil {
		return nil, service.FromRepo("subscription", err)
	}
	s.events.Record(ctx, model.EventSubscriptionChanged, sub)
	return sub, nil
}

// fitsPlan rejects plans whose limits are below the doctor's current usage.
func (s *Service) fitsPlan(ctx context.Context, doctorID uuid.UUID, plan *model.Plan) error {
	usage, err := s.Usage(ctx, doctorID)
	if err != nil {
		return err
	}
	for _, r := range limitedResources {
		if limit := plan.Limit(r); limit > 0 && usage.Of(r) > limit {
			return apperrors.LimitExceeded(r, limit)
		}
	}
	return nil
}

func (s *Service) ChangePlan(ctx context.Context, doctorID uuid.UUID, planCode string) (*model.Subscription, error) {
	sub, err := s.subs.GetByDoctor(ctx, doctorID)
	if err != nil {
		return nil, service.FromRepo("subscription", err)
	}
	if !sub.Live() {
		return nil, apperrors.BadRequest("subscription is not active", nil)
	}
	plan, err := s.Plan(ctx, planCode)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperrors.BadRequest("plan is not available", nil)
	}
	if sub.PlanCode == plan.Code {
		return sub, nil
	}
	if err := s.fitsPlan(ctx, doctorID, plan); err != nil {
		return nil, err
	}

	sub.PlanCode = plan.Code
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, service.FromRepo("subscription", err)
	}
	s.events.Record(ctx, model.EventSubscriptionChanged, sub)
	return sub, nil
}

// Cancel stops renewal; the plan stays in force until the period ends.
func (s *Service) Cancel(ctx context.Context, doctorID uuid.UUID) (*model.Subscription, error) {
	sub, err := s.subs.GetByDoctor(ctx, doctorID)
	if err != nil {
		return nil, service.FromRepo("subscription", err)
	}
	if !sub.Live() {
		return nil, apperrors.BadRequest("subscription is not active", nil)
	}
	if sub.CancelAtPeriodEnd {
		return sub, nil
	}
	now := s.now()
	sub.CancelAtPeriodEnd = true
	sub.CanceledAt = &now
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, service.FromRepo("subscription", err)
	}
	s.events.Record(ctx, model.EventSubscriptionChanged, sub)
	return sub, nil
}

// RecordPayment marks the subscription active for a fresh period.
func (s *Service) RecordPayment(ctx context.Context, req *model.RecordPaymentRequest) (*model.Payment, error) {
	sub, err := s.subs.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, service.FromRepo("subscription", err)
	}
	plan, err := s.Plan(ctx, sub.PlanCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payment := &model.Payment{
		SubscriptionID: sub.ID,
		AmountCents:    req.AmountCents,
		Reference:      req.Reference,
		PaidAt:         now,
	}
	if err := s.subs.CreatePayment(ctx, payment); err != nil {
		return nil, service.FromRepo("payment", err)
	}

	sub.Status = model.SubscriptionActive
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = nextPeriod(now, plan.Interval)
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, service.FromRepo("subscription", err)
	}
	s.events.Record(ctx, model.EventSubscriptionChanged, sub)
	return payment, nil
}

// ExpirePeriods settles every subscription whose period has ended:
// canceled or past-due ones expire, trials fall to past_due, active ones renew
// for one interval per run.
func (s *Service) ExpirePeriods(ctx context.Context) (expired, renewed int, err error) {
	now := s.now()
	subs, err := s.subs.ListPeriodEnded(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list ended periods: %w", err)
	}

	for _, sub := range subs {
		plan, perr := s.Plan(ctx, sub.PlanCode)
		interval := "month"
		if perr == nil {
			interval = plan.Interval
		}

		switch {
		case sub.CancelAtPeriodEnd || sub.Status == model.SubscriptionPastDue:
			sub.Status = model.SubscriptionExpired
			expired++
		case sub.Status == model.SubscriptionTrialing:
			sub.Status = model.SubscriptionPastDue
			sub.CurrentPeriodStart = sub.CurrentPeriodEnd
			sub.CurrentPeriodEnd = nextPeriod(sub.CurrentPeriodEnd, interval)
		default:
			sub.CurrentPeriodStart = sub.CurrentPeriodEnd
			sub.CurrentPeriodEnd = nextPeriod(sub.CurrentPeriodEnd, interval)
			renewed++
		}

		if err := s.subs.Update(ctx, sub); err != nil {
			return expired, renewed, fmt.Errorf("failed to update subscription %s: %w", sub.ID, err)
		}
		s.events.Record(ctx, model.EventSubscriptionChanged, sub)
	}
	return expired, renewed, nil
}
