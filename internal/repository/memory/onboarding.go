package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type onboardingRepository struct {
	db *DB
}

// clearDefaults must be called with the lock held.
func (r *onboardingRepository) clearDefaults(doctorID, keepID uuid.UUID) {
	for _, t := range r.db.templates {
		if t.DoctorID == doctorID && t.ID != keepID {
			t.IsDefault = false
		}
	}
}

func (r *onboardingRepository) CreateTemplate(_ context.Context, t *model.OnboardingTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t.Touch(now())
	if t.IsDefault {
		r.clearDefaults(t.DoctorID, t.ID)
	}
	r.db.templates[t.ID] = clone(t)
	return nil
}

func (r *onboardingRepository) GetTemplate(_ context.Context, id uuid.UUID) (*model.OnboardingTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if t, ok := r.db.templates[id]; ok {
		return clone(t), nil
	}
	return nil, repository.ErrNotFound
}

func (r *onboardingRepository) UpdateTemplate(_ context.Context, t *model.OnboardingTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.templates[t.ID]; !ok {
		return repository.ErrNotFound
	}
	t.Touch(now())
	if t.IsDefault {
		r.clearDefaults(t.DoctorID, t.ID)
	}
	r.db.templates[t.ID] = clone(t)
	return nil
}

func (r *onboardingRepository) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.templates[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.templates, id)
	return nil
}

func (r *onboardingRepository) ListTemplates(_ context.Context, doctorID uuid.UUID) ([]*model.OnboardingTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.OnboardingTemplate
	for _, t := range r.db.templates {
		if t.DoctorID == doctorID {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *onboardingRepository) GetDefaultTemplate(_ context.Context, doctorID uuid.UUID) (*model.OnboardingTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, t := range r.db.templates {
		if t.DoctorID == doctorID && t.IsDefault {
			return clone(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *onboardingRepository) CreateInvite(_ context.Context, inv *model.OnboardingInvite) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.invites {
		if existing.Token == inv.Token {
			return repository.ErrConflict
		}
	}
	inv.Touch(now())
	r.db.invites[inv.ID] = clone(inv)
	return nil
}

func (r *onboardingRepository) GetInviteByToken(_ context.Context, token string) (*model.OnboardingInvite, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, inv := range r.db.invites {
		if inv.Token == token {
			return clone(inv), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *onboardingRepository) UpdateInvite(_ context.Context, inv *model.OnboardingInvite) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.invites[inv.ID]; !ok {
		return repository.ErrNotFound
	}
	inv.Touch(now())
	r.db.invites[inv.ID] = clone(inv)
	return nil
}

func (r *onboardingRepository) ListInvites(_ context.Context, doctorID uuid.UUID) ([]*model.OnboardingInvite, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.OnboardingInvite
	for _, inv := range r.db.invites {
		if inv.DoctorID == doctorID {
			out = append(out, clone(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *onboardingRepository) CreateResponse(_ context.Context, resp *model.OnboardingResponse) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.responses {
		if existing.InviteID == resp.InviteID {
			return repository.ErrConflict
		}
	}
	resp.Touch(now())
	stored := clone(resp)
	stored.Answers = nil
	r.db.responses[resp.ID] = stored
	return nil
}

func (r *onboardingRepository) GetResponse(_ context.Context, id uuid.UUID) (*model.OnboardingResponse, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if resp, ok := r.db.responses[id]; ok {
		return clone(resp), nil
	}
	return nil, repository.ErrNotFound
}

func (r *onboardingRepository) ListResponses(_ context.Context, doctorID uuid.UUID) ([]*model.OnboardingResponse, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.OnboardingResponse
	for _, resp := range r.db.responses {
		if resp.DoctorID == doctorID {
			out = append(out, clone(resp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
