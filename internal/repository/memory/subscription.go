package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type subscriptionRepository struct {
	db *DB
}

func (r *subscriptionRepository) ListPlans(_ context.Context) ([]*model.Plan, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Plan
	for _, p := range r.db.plans {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

func (r *subscriptionRepository) GetPlan(_ context.Context, code string) (*model.Plan, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if p, ok := r.db.plans[code]; ok {
		return clone(p), nil
	}
	return nil, repository.ErrNotFound
}

func (r *subscriptionRepository) UpsertPlan(_ context.Context, plan *model.Plan) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now()
	}
	r.db.plans[plan.Code] = clone(plan)
	return nil
}

func (r *subscriptionRepository) Get(_ context.Context, id uuid.UUID) (*model.Subscription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if s, ok := r.db.subscriptions[id]; ok {
		return clone(s), nil
	}
	return nil, repository.ErrNotFound
}

func (r *subscriptionRepository) GetByDoctor(_ context.Context, doctorID uuid.UUID) (*model.Subscription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, s := range r.db.subscriptions {
		if s.DoctorID == doctorID {
			return clone(s), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *subscriptionRepository) Create(_ context.Context, sub *model.Subscription) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, s := range r.db.subscriptions {
		if s.DoctorID == sub.DoctorID {
			return repository.ErrConflict
		}
	}
	sub.Touch(now())
	r.db.subscriptions[sub.ID] = clone(sub)
	return nil
}

func (r *subscriptionRepository) Update(_ context.Context, sub *model.Subscription) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.subscriptions[sub.ID]; !ok {
		return repository.ErrNotFound
	}
	sub.Touch(now())
	r.db.subscriptions[sub.ID] = clone(sub)
	return nil
}

func (r *subscriptionRepository) ListPeriodEnded(_ context.Context, before time.Time) ([]*model.Subscription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Subscription
	for _, s := range r.db.subscriptions {
		if s.Live() && !s.CurrentPeriodEnd.After(before) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentPeriodEnd.Before(out[j].CurrentPeriodEnd) })
	return out, nil
}

func (r *subscriptionRepository) CreatePayment(_ context.Context, p *model.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.subscriptions[p.SubscriptionID]; !ok {
		return repository.ErrNotFound
	}
	p.Touch(now())
	r.db.payments = append(r.db.payments, clone(p))
	return nil
}
