package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type appointmentRepository struct {
	db *DB
}

func (r *appointmentRepository) Create(_ context.Context, a *model.Appointment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a.Touch(now())
	r.db.appointments[a.ID] = clone(a)
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if a, ok := r.db.appointments[id]; ok {
		return clone(a), nil
	}
	return nil, repository.ErrNotFound
}

func (r *appointmentRepository) Update(_ context.Context, a *model.Appointment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.appointments[a.ID]; !ok {
		return repository.ErrNotFound
	}
	a.Touch(now())
	r.db.appointments[a.ID] = clone(a)
	return nil
}

func (r *appointmentRepository) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Appointment
	for _, a := range r.db.appointments {
		if filters.DoctorID != nil && a.DoctorID != *filters.DoctorID {
			continue
		}
		if filters.PatientID != nil && a.PatientID != *filters.PatientID {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if !filters.From.IsZero() && !a.EndsAt.After(filters.From) {
			continue
		}
		if !filters.To.IsZero() && !a.StartsAt.Before(filters.To) {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *appointmentRepository) CheckConflicts(_ context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, a := range r.db.appointments {
		if a.DoctorID != doctorID || a.Status != model.AppointmentStatusScheduled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *appointmentRepository) ListDueReminders(_ context.Context, from, to time.Time) ([]*model.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Appointment
	for _, a := range r.db.appointments {
		if a.Status != model.AppointmentStatusScheduled || a.ReminderSent {
			continue
		}
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}
