package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type courseRepository struct {
	db *DB
}

func (r *courseRepository) Create(_ context.Context, c *model.Course) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c.Touch(now())
	r.db.courses[c.ID] = clone(c)
	return nil
}

func (r *courseRepository) Get(_ context.Context, id uuid.UUID) (*model.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if c, ok := r.db.courses[id]; ok {
		return clone(c), nil
	}
	return nil, repository.ErrNotFound
}

func (r *courseRepository) Update(_ context.Context, c *model.Course) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.courses[c.ID]; !ok {
		return repository.ErrNotFound
	}
	c.Touch(now())
	r.db.courses[c.ID] = clone(c)
	return nil
}

func (r *courseRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.courses[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.courses, id)
	for eid, e := range r.db.enrollments {
		if e.CourseID == id {
			delete(r.db.enrollments, eid)
		}
	}
	return nil
}

func (r *courseRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Course
	for _, c := range r.db.courses {
		if c.DoctorID == doctorID {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *courseRepository) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	courses, err := r.ListByDoctor(ctx, doctorID)
	return len(courses), err
}

func (r *courseRepository) CreateEnrollment(_ context.Context, e *model.Enrollment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.enrollments {
		if existing.CourseID == e.CourseID && existing.PatientID == e.PatientID {
			return repository.ErrConflict
		}
	}
	e.Touch(now())
	if e.CompletedLessons == nil {
		e.CompletedLessons = model.StringList{}
	}
	r.db.enrollments[e.ID] = clone(e)
	return nil
}

func (r *courseRepository) GetEnrollment(_ context.Context, courseID, patientID uuid.UUID) (*model.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, e := range r.db.enrollments {
		if e.CourseID == courseID && e.PatientID == patientID {
			c := clone(e)
			c.CompletedLessons = append(model.StringList{}, e.CompletedLessons...)
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *courseRepository) UpdateEnrollment(_ context.Context, e *model.Enrollment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.enrollments[e.ID]; !ok {
		return repository.ErrNotFound
	}
	e.Touch(now())
	r.db.enrollments[e.ID] = clone(e)
	return nil
}

func (r *courseRepository) ListEnrollments(_ context.Context, patientID uuid.UUID) ([]*model.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*model.Enrollment
	for _, e := range r.db.enrollments {
		if e.PatientID == patientID {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
