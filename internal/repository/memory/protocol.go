package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type protocolRepository struct {
	db *DB
}

func (r *protocolRepository) Create(_ context.Context, p *model.Protocol) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p.Touch(now())
	r.db.protocols[p.ID] = clone(p)
	return nil
}

func (r *protocolRepository) Get(_ context.Context, id uuid.UUID) (*model.Protocol, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if p, ok := r.db.protocols[id]; ok {
		return clone(p), nil
	}
	return nil, repository.ErrNotFound
}

func (r *protocolRepository) Update(_ context.Context, p *model.Protocol) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.protocols[p.ID]; !ok {
		return repository.ErrNotFound
	}
	p.Touch(now())
	r.db.protocols[p.ID] = clone(p)
	return nil
}

func (r *protocolRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.protocols[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.protocols, id)
	return nil
}

func (r *protocolRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID, opts model.ListOptions) ([]*model.Protocol, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Protocol
	for _, p := range r.db.protocols {
		if p.DoctorID == doctorID && matches(opts.Search, p.Title) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return page(out, opts.Limit, opts.Offset), nil
}

func (r *protocolRepository) CountByDoctor(_ context.Context, doctorID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, p := range r.db.protocols {
		if p.DoctorID == doctorID {
			n++
		}
	}
	return n, nil
}

type prescriptionRepository struct {
	db *DB
}

func (r *prescriptionRepository) Create(_ context.Context, p *model.Prescription) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if p.IsOpen() {
		for _, existing := range r.db.prescriptions {
			if existing.PatientID == p.PatientID && existing.ProtocolID == p.ProtocolID && existing.IsOpen() {
				return repository.ErrConflict
			}
		}
	}
	p.Touch(now())
	r.db.prescriptions[p.ID] = clone(p)
	return nil
}

func (r *prescriptionRepository) Get(_ context.Context, id uuid.UUID) (*model.Prescription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if p, ok := r.db.prescriptions[id]; ok {
		return clone(p), nil
	}
	return nil, repository.ErrNotFound
}

func (r *prescriptionRepository) Update(_ context.Context, p *model.Prescription) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.prescriptions[p.ID]; !ok {
		return repository.ErrNotFound
	}
	p.Touch(now())
	r.db.prescriptions[p.ID] = clone(p)
	return nil
}

func (r *prescriptionRepository) List(_ context.Context, filters *model.PrescriptionFilters) ([]*model.Prescription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Prescription
	for _, p := range r.db.prescriptions {
		if filters.DoctorID != nil && p.DoctorID != *filters.DoctorID {
			continue
		}
		if filters.PatientID != nil && p.PatientID != *filters.PatientID {
			continue
		}
		if filters.ProtocolID != nil && p.ProtocolID != *filters.ProtocolID {
			continue
		}
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *prescriptionRepository) HasOpen(_ context.Context, patientID, protocolID uuid.UUID) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, p := range r.db.prescriptions {
		if p.PatientID == patientID && p.ProtocolID == protocolID && p.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *prescriptionRepository) CountOpenForProtocol(_ context.Context, protocolID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, p := range r.db.prescriptions {
		if p.ProtocolID == protocolID && p.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (r *prescriptionRepository) AddCompletion(_ context.Context, c *model.TaskCompletion) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tasks, ok := r.db.completions[c.PrescriptionID]
	if !ok {
		tasks = make(map[string]*model.TaskCompletion)
		r.db.completions[c.PrescriptionID] = tasks
	}
	if _, done := tasks[c.TaskID]; done {
		return false, nil
	}
	if c.CompletedAt.IsZero() {
		c.CompletedAt = now()
	}
	tasks[c.TaskID] = clone(c)
	return true, nil
}

func (r *prescriptionRepository) RemoveCompletion(_ context.Context, prescriptionID uuid.UUID, taskID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.completions[prescriptionID][taskID]; !ok {
		return false, nil
	}
	delete(r.db.completions[prescriptionID], taskID)
	return true, nil
}

func (r *prescriptionRepository) Reopen(_ context.Context, p *model.Prescription, taskID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.prescriptions[p.ID]; !ok {
		return false, repository.ErrNotFound
	}
	if _, ok := r.db.completions[p.ID][taskID]; !ok {
		return false, nil
	}
	if p.IsOpen() {
		for _, existing := range r.db.prescriptions {
			if existing.ID != p.ID && existing.PatientID == p.PatientID &&
				existing.ProtocolID == p.ProtocolID && existing.IsOpen() {
				return false, repository.ErrConflict
			}
		}
	}
	delete(r.db.completions[p.ID], taskID)
	p.Touch(now())
	r.db.prescriptions[p.ID] = clone(p)
	return true, nil
}

func (r *prescriptionRepository) ListCompletions(_ context.Context, prescriptionID uuid.UUID) ([]*model.TaskCompletion, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.TaskCompletion
	for _, c := range r.db.completions[prescriptionID] {
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}
