package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type relationshipRepository struct {
	db *DB
}

func (r *relationshipRepository) Get(_ context.Context, id uuid.UUID) (*model.DoctorPatient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if rel, ok := r.db.relationships[id]; ok {
		return clone(rel), nil
	}
	return nil, repository.ErrNotFound
}

func (r *relationshipRepository) Find(_ context.Context, doctorID, patientID uuid.UUID) (*model.DoctorPatient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, rel := range r.db.relationships {
		if rel.DoctorID == doctorID && rel.PatientID == patientID {
			return clone(rel), nil
		}
	}
	return nil, repository.ErrNotFound
}

// clearPrimary must be called with the lock held.
func (r *relationshipRepository) clearPrimary(patientID, keepID uuid.UUID) {
	for _, rel := range r.db.relationships {
		if rel.PatientID == patientID && rel.ID != keepID && rel.IsPrimary {
			rel.IsPrimary = false
			rel.UpdatedAt = now()
		}
	}
}

func (r *relationshipRepository) Create(_ context.Context, rel *model.DoctorPatient) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.relationships {
		if existing.DoctorID == rel.DoctorID && existing.PatientID == rel.PatientID {
			return repository.ErrConflict
		}
	}
	rel.Touch(now())
	if rel.IsPrimary {
		r.clearPrimary(rel.PatientID, rel.ID)
	}
	r.db.relationships[rel.ID] = clone(rel)
	return nil
}

func (r *relationshipRepository) SetPrimary(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rel, ok := r.db.relationships[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.clearPrimary(rel.PatientID, id)
	rel.IsPrimary = true
	rel.UpdatedAt = now()
	return nil
}

func (r *relationshipRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rel, ok := r.db.relationships[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.db.relationships, id)
	if !rel.IsPrimary {
		return nil
	}

	var latest *model.DoctorPatient
	for _, other := range r.db.relationships {
		if other.PatientID == rel.PatientID && (latest == nil || other.CreatedAt.After(latest.CreatedAt)) {
			latest = other
		}
	}
	if latest != nil {
		latest.IsPrimary = true
		latest.UpdatedAt = now()
	}
	return nil
}

func (r *relationshipRepository) ListForPatient(_ context.Context, patientID uuid.UUID) ([]*model.DoctorPatient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.DoctorPatient
	for _, rel := range r.db.relationships {
		if rel.PatientID == patientID {
			out = append(out, clone(rel))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *relationshipRepository) linked(rel *model.DoctorPatient, userID uuid.UUID) *model.LinkedUser {
	lu := &model.LinkedUser{
		RelationshipID: rel.ID,
		UserID:         userID,
		IsPrimary:      rel.IsPrimary,
		LinkedAt:       rel.CreatedAt,
	}
	if u, ok := r.db.users[userID]; ok {
		lu.Email, lu.FirstName, lu.LastName, lu.Status = u.Email, u.FirstName, u.LastName, u.Status
	}
	return lu
}

func (r *relationshipRepository) ListPatients(_ context.Context, doctorID uuid.UUID, opts model.ListOptions) ([]*model.LinkedUser, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.LinkedUser
	for _, rel := range r.db.relationships {
		if rel.DoctorID != doctorID {
			continue
		}
		lu := r.linked(rel, rel.PatientID)
		if !matches(opts.Search, lu.Email, lu.FirstName, lu.LastName) {
			continue
		}
		out = append(out, lu)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return page(out, opts.Limit, opts.Offset), nil
}

func (r *relationshipRepository) ListDoctors(_ context.Context, patientID uuid.UUID) ([]*model.LinkedUser, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.LinkedUser
	for _, rel := range r.db.relationships {
		if rel.PatientID == patientID {
			out = append(out, r.linked(rel, rel.DoctorID))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].LinkedAt.After(out[j].LinkedAt)
	})
	return out, nil
}

func (r *relationshipRepository) CountPatients(_ context.Context, doctorID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, rel := range r.db.relationships {
		if rel.DoctorID == doctorID {
			n++
		}
	}
	return n, nil
}
