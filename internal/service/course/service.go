package course

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

type Service struct {
	store  *repository.Store
	limits service.LimitChecker
	now    func() time.Time
}

func NewService(store *repository.Store, limits service.LimitChecker) *Service {
	return &Service{store: store, limits: limits, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func normalizeModules(modules []model.CourseModule) (model.CourseModules, error) {
	out := make(model.CourseModules, len(modules))
	seen := make(map[string]bool)
	for i, m := range modules {
		if len(m.Lessons) == 0 {
			return nil, apperrors.BadRequest(fmt.Sprintf("module %q has no lessons", m.Title), nil)
		}
		lessons := make([]model.Lesson, len(m.Lessons))
		copy(lessons, m.Lessons)
		for j := range lessons {
			l := &lessons[j]
			l.ID = strings.TrimSpace(l.ID)
			if l.ID == "" {
				for l.ID == "" || seen[l.ID] {
					l.ID = uuid.NewString()[:8]
				}
			} else if seen[l.ID] {
				return nil, apperrors.BadRequest(fmt.Sprintf("lesson id %q is used more than once", l.ID), nil)
			}
			seen[l.ID] = true
		}
		out[i] = model.CourseModule{Title: m.Title, Lessons: lessons}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CourseRequest) (*model.Course, error) {
	modules, err := normalizeModules(req.Modules)
	if err != nil {
		return nil, err
	}
	if err := s.limits.CheckLimit(ctx, doctorID, model.ResourceCourses); err != nil {
		return nil, err
	}
	c := &model.Course{
		DoctorID:    doctorID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Modules:     modules,
	}
	if err := s.store.Courses.Create(ctx, c); err != nil {
		return nil, apperrors.Internal(err)
	}
	return c, nil
}

// Get allows the owner and admins, and patients enrolled in a published course.
func (s *Service) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Course, error) {
	c, err := s.store.Courses.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepo("course", err)
	}
	if actor.IsAdmin() || c.DoctorID == actor.ID {
		return c, nil
	}
	if actor.IsPatient() && c.Published {
		if _, err := s.store.Courses.GetEnrollment(ctx, c.ID, actor.ID); err == nil {
			return c, nil
		}
	}
	return nil, apperrors.NotFound("course", nil)
}

func (s *Service) owned(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Course, error) {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.DoctorID != actor.ID && !actor.IsAdmin() {
		return nil, apperrors.NotFound("course", nil)
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, actor service.Actor, id uuid.UUID, req *model.CourseRequest) (*model.Course, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	modules, err := normalizeModules(req.Modules)
	if err != nil {
		return nil, err
	}
	if c.Published && len(modules) == 0 {
		return nil, apperrors.BadRequest("a published course needs at least one lesson", nil)
	}
	c.Title = strings.TrimSpace(req.Title)
	c.Description = req.Description
	c.Modules = modules
	if err := s.store.Courses.Update(ctx, c); err != nil {
		return nil, service.FromRepo("course", err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	return service.FromRepo("course", s.store.Courses.Delete(ctx, id))
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID) ([]*model.Course, error) {
	list, err := s.store.Courses.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

// SetPublished publishes or unpublishes a course. Empty courses cannot be published.
func (s *Service) SetPublished(ctx context.Context, actor service.Actor, id uuid.UUID, published bool) (*model.Course, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if published == c.Published {
		return c, nil
	}
	if published {
		if c.LessonCount() == 0 {
			return nil, apperrors.BadRequest("a published course needs at least one lesson", nil)
		}
		at := s.now()
		c.PublishedAt = &at
	}
	c.Published = published
	if err := s.store.Courses.Update(ctx, c); err != nil {
		return nil, service.FromRepo("course", err)
	}
	return c, nil
}

// Enroll gives a linked patient access to a published course. Enrolling twice
// returns the existing enrollment.
func (s *Service) Enroll(ctx context.Context, actor service.Actor, courseID, patientID uuid.UUID) (*model.Enrollment, error) {
	c, err := s.owned(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if !c.Published {
		return nil, apperrors.BadRequest("course is not published", nil)
	}
	if err := service.EnsureLinked(ctx, s.store.Relationships, c.DoctorID, patientID); err != nil {
		return nil, err
	}

	if e, err := s.store.Courses.GetEnrollment(ctx, courseID, patientID); err == nil {
		return e, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	e := &model.Enrollment{CourseID: courseID, PatientID: patientID}
	if err := s.store.Courses.CreateEnrollment(ctx, e); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			existing, err := s.store.Courses.GetEnrollment(ctx, courseID, patientID)
			if err != nil {
				return nil, service.FromRepo("enrollment", err)
			}
			return existing, nil
		}
		return nil, apperrors.Internal(err)
	}
	return e, nil
}

func (s *Service) enrollment(ctx context.Context, patientID, courseID uuid.UUID) (*model.Course, *model.Enrollment, error) {
	e, err := s.store.Courses.GetEnrollment(ctx, courseID, patientID)
	if err != nil {
		return nil, nil, service.FromRepo("enrollment", err)
	}
	c, err := s.store.Courses.Get(ctx, courseID)
	if err != nil {
		return nil, nil, service.FromRepo("course", err)
	}
	return c, e, nil
}

// CompleteLesson records a finished lesson; finishing the last one completes the course.
func (s *Service) CompleteLesson(ctx context.Context, patientID, courseID uuid.UUID, lessonID string) (*model.EnrollmentProgress, error) {
	c, e, err := s.enrollment(ctx, patientID, courseID)
	if err != nil {
		return nil, err
	}
	if !c.HasLesson(lessonID) {
		return nil, apperrors.NotFound("lesson", nil)
	}
	if !e.CompletedLessons.Contains(lessonID) {
		done := make(model.StringList, 0, len(e.CompletedLessons)+1)
		done = append(done, e.CompletedLessons...)
		e.CompletedLessons = append(done, lessonID)

		prog := progress(c, e)
		if prog.CompletedLessons >= prog.TotalLessons && e.CompletedAt == nil {
			at := s.now()
			e.CompletedAt = &at
		}
		if err := s.store.Courses.UpdateEnrollment(ctx, e); err != nil {
			return nil, service.FromRepo("enrollment", err)
		}
	}
	return progress(c, e), nil
}

func (s *Service) Progress(ctx context.Context, patientID, courseID uuid.UUID) (*model.EnrollmentProgress, error) {
	c, e, err := s.enrollment(ctx, patientID, courseID)
	if err != nil {
		return nil, err
	}
	return progress(c, e), nil
}

// ListEnrollments returns the patient's courses that are still published.
func (s *Service) ListEnrollments(ctx context.Context, patientID uuid.UUID) ([]*model.EnrollmentProgress, error) {
	list, err := s.store.Courses.ListEnrollments(ctx, patientID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	out := make([]*model.EnrollmentProgress, 0, len(list))
	for _, e := range list {
		c, err := s.store.Courses.Get(ctx, e.CourseID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if !c.Published {
			continue
		}
		out = append(out, progress(c, e))
	}
	return out, nil
}

// progress ignores completions of lessons since removed from the course.
func progress(c *model.Course, e *model.Enrollment) *model.EnrollmentProgress {
	p := &model.EnrollmentProgress{
		Enrollment:   e,
		CourseTitle:  c.Title,
		TotalLessons: c.LessonCount(),
	}
	for _, id := range e.CompletedLessons {
		if c.HasLesson(id) {
			p.CompletedLessons++
		}
	}
	if p.TotalLessons > 0 {
		p.Percent = float64(p.CompletedLessons) * 100 / float64(p.TotalLessons)
	}
	return p
}
