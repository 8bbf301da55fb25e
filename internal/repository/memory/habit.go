package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type habitRepository struct {
	db *DB
}

func (r *habitRepository) Create(_ context.Context, h *model.Habit) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	h.Touch(now())
	r.db.habits[h.ID] = clone(h)
	return nil
}

func (r *habitRepository) Get(_ context.Context, id uuid.UUID) (*model.Habit, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if h, ok := r.db.habits[id]; ok {
		return clone(h), nil
	}
	return nil, repository.ErrNotFound
}

func (r *habitRepository) Update(_ context.Context, h *model.Habit) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.habits[h.ID]; !ok {
		return repository.ErrNotFound
	}
	h.Touch(now())
	r.db.habits[h.ID] = clone(h)
	return nil
}

func (r *habitRepository) ListByPatient(_ context.Context, patientID uuid.UUID, includeArchived bool) ([]*model.Habit, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Habit
	for _, h := range r.db.habits {
		if h.PatientID == patientID && (includeArchived || !h.Archived) {
			out = append(out, clone(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *habitRepository) AddCheckIn(_ context.Context, c *model.HabitCheckIn) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	days, ok := r.db.checkIns[c.HabitID]
	if !ok {
		days = make(map[string]*model.HabitCheckIn)
		r.db.checkIns[c.HabitID] = days
	}
	key := dayKey(c.Date)
	if _, exists := days[key]; exists {
		return false, nil
	}
	c.CreatedAt = now()
	days[key] = clone(c)
	return true, nil
}

func (r *habitRepository) RemoveCheckIn(_ context.Context, habitID uuid.UUID, date time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := dayKey(date)
	if _, ok := r.db.checkIns[habitID][key]; !ok {
		return false, nil
	}
	delete(r.db.checkIns[habitID], key)
	return true, nil
}

func (r *habitRepository) ListCheckIns(_ context.Context, habitID uuid.UUID, from, to time.Time) ([]*model.HabitCheckIn, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.HabitCheckIn
	for _, c := range r.db.checkIns[habitID] {
		if c.Date.Before(from) || c.Date.After(to) {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
