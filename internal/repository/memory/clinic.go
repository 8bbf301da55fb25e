package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type clinicRepository struct {
	db *DB
}

func (r *clinicRepository) Create(_ context.Context, clinic *model.Clinic) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, c := range r.db.clinics {
		if c.Slug == clinic.Slug {
			return repository.ErrConflict
		}
	}
	clinic.Touch(now())
	r.db.clinics[clinic.ID] = clone(clinic)
	r.db.members[clinic.ID] = map[uuid.UUID]*model.ClinicMember{
		clinic.OwnerID: {ClinicID: clinic.ID, UserID: clinic.OwnerID, Role: model.ClinicRoleOwner, CreatedAt: clinic.CreatedAt},
	}
	return nil
}

func (r *clinicRepository) Get(_ context.Context, id uuid.UUID) (*model.Clinic, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if c, ok := r.db.clinics[id]; ok {
		return clone(c), nil
	}
	return nil, repository.ErrNotFound
}

func (r *clinicRepository) GetBySlug(_ context.Context, slug string) (*model.Clinic, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, c := range r.db.clinics {
		if c.Slug == slug {
			return clone(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *clinicRepository) SlugExists(_ context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, c := range r.db.clinics {
		if c.Slug == slug && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *clinicRepository) Update(_ context.Context, clinic *model.Clinic) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.clinics[clinic.ID]; !ok {
		return repository.ErrNotFound
	}
	for _, c := range r.db.clinics {
		if c.Slug == clinic.Slug && c.ID != clinic.ID {
			return repository.ErrConflict
		}
	}
	clinic.Touch(now())
	r.db.clinics[clinic.ID] = clone(clinic)
	return nil
}

func (r *clinicRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.clinics[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.clinics, id)
	delete(r.db.members, id)
	return nil
}

func (r *clinicRepository) ListByMember(_ context.Context, userID uuid.UUID) ([]*model.Clinic, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Clinic
	for id, members := range r.db.members {
		if _, ok := members[userID]; ok {
			out = append(out, clone(r.db.clinics[id]))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *clinicRepository) AddMember(_ context.Context, member *model.ClinicMember) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	members, ok := r.db.members[member.ClinicID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, exists := members[member.UserID]; exists {
		return repository.ErrConflict
	}
	member.CreatedAt = now()
	members[member.UserID] = clone(member)
	return nil
}

func (r *clinicRepository) GetMember(_ context.Context, clinicID, userID uuid.UUID) (*model.ClinicMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if m, ok := r.db.members[clinicID][userID]; ok {
		return clone(m), nil
	}
	return nil, repository.ErrNotFound
}

func (r *clinicRepository) RemoveMember(_ context.Context, clinicID, userID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.members[clinicID][userID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.members[clinicID], userID)
	return nil
}

func (r *clinicRepository) ListMembers(_ context.Context, clinicID uuid.UUID) ([]*model.ClinicMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.ClinicMember
	for _, m := range r.db.members[clinicID] {
		c := clone(m)
		if u, ok := r.db.users[m.UserID]; ok {
			c.FirstName, c.LastName, c.Email = u.FirstName, u.LastName, u.Email
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *clinicRepository) CountMembers(_ context.Context, clinicID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return len(r.db.members[clinicID]), nil
}
