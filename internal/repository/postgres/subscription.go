package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const (
	planColumns = `code, name, price_cents, interval, max_patients, max_protocols, max_courses,
		max_clinic_members, active, created_at`
	subscriptionColumns = `id, doctor_id, plan_code, status, current_period_start, current_period_end,
		cancel_at_period_end, canceled_at, created_at, updated_at`
)

type subscriptionRepository struct {
	BaseRepository
}

func NewSubscriptionRepository(base BaseRepository) repository.SubscriptionRepository {
	return &subscriptionRepository{base}
}

func (r *subscriptionRepository) ListPlans(ctx context.Context) ([]*model.Plan, error) {
	var plans []*model.Plan
	if err := r.db.SelectContext(ctx, &plans, `SELECT `+planColumns+` FROM plans ORDER BY price_cents`); err != nil {
		return nil, mapError("list plans", err)
	}
	return plans, nil
}

func (r *subscriptionRepository) GetPlan(ctx context.Context, code string) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.GetContext(ctx, &plan, `SELECT `+planColumns+` FROM plans WHERE code = $1`, code); err != nil {
		return nil, mapError("get plan", err)
	}
	return &plan, nil
}

func (r *subscriptionRepository) UpsertPlan(ctx context.Context, plan *model.Plan) error {
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO plans (`+planColumns+`) VALUES (
			:code, :name, :price_cents, :interval, :max_patients, :max_protocols, :max_courses,
			:max_clinic_members, :active, :created_at)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name, price_cents = EXCLUDED.price_cents, interval = EXCLUDED.interval,
			max_patients = EXCLUDED.max_patients, max_protocols = EXCLUDED.max_protocols,
			max_courses = EXCLUDED.max_courses, max_clinic_members = EXCLUDED.max_clinic_members,
			active = EXCLUDED.active`, plan)
	return mapError("upsert plan", err)
}

func (r *subscriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription
	if err := r.db.GetContext(ctx, &sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id); err != nil {
		return nil, mapError("get subscription", err)
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByDoctor(ctx context.Context, doctorID uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription
	if err := r.db.GetContext(ctx, &sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE doctor_id = $1`, doctorID); err != nil {
		return nil, mapError("get subscription by doctor", err)
	}
	return &sub, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	sub.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (
			:id, :doctor_id, :plan_code, :status, :current_period_start, :current_period_end,
			:cancel_at_period_end, :canceled_at, :created_at, :updated_at)`, sub)
	return mapError("create subscription", err)
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	sub.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE subscriptions SET
			plan_code = :plan_code, status = :status, current_period_start = :current_period_start,
			current_period_end = :current_period_end, cancel_at_period_end = :cancel_at_period_end,
			canceled_at = :canceled_at, updated_at = :updated_at
		WHERE id = :id`, sub)
	if err != nil {
		return mapError("update subscription", err)
	}
	return expectRows("update subscription", res)
}

func (r *subscriptionRepository) ListPeriodEnded(ctx context.Context, before time.Time) ([]*model.Subscription, error) {
	var out []*model.Subscription
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE current_period_end <= $1 AND status IN ('trialing', 'active', 'past_due')
		ORDER BY current_period_end`, before)
	if err != nil {
		return nil, mapError("list ended subscriptions", err)
	}
	return out, nil
}

func (r *subscriptionRepository) CreatePayment(ctx context.Context, p *model.Payment) error {
	p.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO payments (id, subscription_id, amount_cents, reference, paid_at, created_at, updated_at)
		VALUES (:id, :subscription_id, :amount_cents, :reference, :paid_at, :created_at, :updated_at)`, p)
	return mapError("record payment", err)
}
