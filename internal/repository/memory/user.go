package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type userRepository struct {
	db *DB
}

func (r *userRepository) Create(_ context.Context, user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Email == user.Email || u.ReferralCode == user.ReferralCode {
			return repository.ErrConflict
		}
	}
	user.Touch(now())
	r.db.users[user.ID] = clone(user)
	return nil
}

func (r *userRepository) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if u, ok := r.db.users[id]; ok {
		return clone(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) find(pred func(*model.User) bool) (*model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if pred(u) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *userRepository) GetByReferralCode(_ context.Context, code string) (*model.User, error) {
	code = strings.ToUpper(code)
	return r.find(func(u *model.User) bool { return u.ReferralCode == code })
}

func (r *userRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByReferralCode(ctx, code)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *userRepository) Update(_ context.Context, user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	user.Touch(now())
	r.db.users[user.ID] = clone(user)
	return nil
}

func (r *userRepository) List(_ context.Context, filters *model.UserFilters) ([]*model.User, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.User
	for _, u := range r.db.users {
		if filters.Role != "" && u.Role != filters.Role {
			continue
		}
		if filters.Status != "" && u.Status != filters.Status {
			continue
		}
		if !matches(filters.Search, u.Email, u.FirstName, u.LastName) {
			continue
		}
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filters.Limit, filters.Offset), len(out), nil
}

type referralRepository struct {
	db *DB
}

func (r *referralRepository) Create(_ context.Context, referral *model.Referral) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, ref := range r.db.referrals {
		if ref.ReferredUserID == referral.ReferredUserID {
			return repository.ErrConflict
		}
	}
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	referral.CreatedAt = now()
	r.db.referrals = append(r.db.referrals, clone(referral))
	return nil
}

func (r *referralRepository) ListByReferrer(_ context.Context, referrerID uuid.UUID) ([]*model.Referral, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Referral
	for i := len(r.db.referrals) - 1; i >= 0; i-- {
		ref := r.db.referrals[i]
		if ref.ReferrerID != referrerID {
			continue
		}
		c := clone(ref)
		if u, ok := r.db.users[ref.ReferredUserID]; ok {
			c.ReferredName = u.FullName()
			c.ReferredEmail = u.Email
		}
		out = append(out, c)
	}
	return out, nil
}

type deviceRepository struct {
	db *DB
}

func (r *deviceRepository) Upsert(_ context.Context, d *model.DeviceToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	d.CreatedAt = now()
	r.db.devices[d.Token] = clone(d)
	return nil
}

func (r *deviceRepository) Delete(_ context.Context, userID uuid.UUID, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	d, ok := r.db.devices[token]
	if !ok || d.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.db.devices, token)
	return nil
}

func (r *deviceRepository) DeleteTokens(_ context.Context, tokens []string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, t := range tokens {
		delete(r.db.devices, t)
	}
	return nil
}

func (r *deviceRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.DeviceToken, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.DeviceToken
	for _, d := range r.db.devices {
		if d.UserID == userID {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}
