package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const (
	courseColumns     = `id, doctor_id, title, description, published, published_at, modules, created_at, updated_at`
	enrollmentColumns = `id, course_id, patient_id, completed_lessons, completed_at, created_at, updated_at`
)

type courseRepository struct {
	BaseRepository
}

func NewCourseRepository(base BaseRepository) repository.CourseRepository {
	return &courseRepository{base}
}

func (r *courseRepository) Create(ctx context.Context, c *model.Course) error {
	c.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`) VALUES (
			:id, :doctor_id, :title, :description, :published, :published_at, :modules,
			:created_at, :updated_at)`, c)
	return mapError("create course", err)
}

func (r *courseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	var c model.Course
	if err := r.db.GetContext(ctx, &c, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		return nil, mapError("get course", err)
	}
	return &c, nil
}

func (r *courseRepository) Update(ctx context.Context, c *model.Course) error {
	c.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE courses SET
			title = :title, description = :description, published = :published,
			published_at = :published_at, modules = :modules, updated_at = :updated_at
		WHERE id = :id`, c)
	if err != nil {
		return mapError("update course", err)
	}
	return expectRows("update course", res)
}

func (r *courseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return mapError("delete course", err)
	}
	return expectRows("delete course", res)
}

func (r *courseRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Course, error) {
	var out []*model.Course
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+courseColumns+` FROM courses WHERE doctor_id = $1 ORDER BY updated_at DESC`, doctorID)
	if err != nil {
		return nil, mapError("list courses", err)
	}
	return out, nil
}

func (r *courseRepository) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM courses WHERE doctor_id = $1`, doctorID); err != nil {
		return 0, mapError("count courses", err)
	}
	return n, nil
}

func (r *courseRepository) CreateEnrollment(ctx context.Context, e *model.Enrollment) error {
	e.Touch(now())
	if e.CompletedLessons == nil {
		e.CompletedLessons = model.StringList{}
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`) VALUES (
			:id, :course_id, :patient_id, :completed_lessons, :completed_at, :created_at, :updated_at)`, e)
	return mapError("create enrollment", err)
}

func (r *courseRepository) GetEnrollment(ctx context.Context, courseID, patientID uuid.UUID) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.db.GetContext(ctx, &e, `
		SELECT `+enrollmentColumns+` FROM enrollments WHERE course_id = $1 AND patient_id = $2`,
		courseID, patientID)
	if err != nil {
		return nil, mapError("get enrollment", err)
	}
	return &e, nil
}

func (r *courseRepository) UpdateEnrollment(ctx context.Context, e *model.Enrollment) error {
	e.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE enrollments SET
			completed_lessons = :completed_lessons, completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id`, e)
	if err != nil {
		return mapError("update enrollment", err)
	}
	return expectRows("update enrollment", res)
}

func (r *courseRepository) ListEnrollments(ctx context.Context, patientID uuid.UUID) ([]*model.Enrollment, error) {
	var out []*model.Enrollment
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+enrollmentColumns+` FROM enrollments WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, mapError("list enrollments", err)
	}
	return out, nil
}
