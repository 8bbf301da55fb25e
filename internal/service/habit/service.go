package habit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

// history bounds how far back streaks are computed.
const history = 2 * 366 * 24 * time.Hour

type Service struct {
	store *repository.Store
	now   func() time.Time
}

func NewService(store *repository.Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// today is the patient's current calendar date in their own timezone.
func (s *Service) today(ctx context.Context, patientID uuid.UUID) time.Time {
	loc := time.UTC
	if u, err := s.store.Users.Get(ctx, patientID); err == nil && u.Timezone != "" {
		if l, err := time.LoadLocation(u.Timezone); err == nil {
			loc = l
		}
	}
	return civil(s.now().In(loc))
}

func normalize(req *model.HabitRequest) (*model.HabitRequest, error) {
	out := *req
	out.Name = strings.TrimSpace(req.Name)
	if out.TargetPerPeriod == 0 {
		out.TargetPerPeriod = 1
	}
	switch out.Frequency {
	case model.HabitDaily:
		if out.TargetPerPeriod != 1 {
			return nil, apperrors.BadRequest("daily habits have a target of 1", nil)
		}
	case model.HabitWeekly:
		if out.TargetPerPeriod > 7 {
			return nil, apperrors.BadRequest("weekly target cannot exceed 7", nil)
		}
	default:
		return nil, apperrors.BadRequest("frequency must be daily or weekly", nil)
	}
	return &out, nil
}

// Create adds a habit for the patient. The caller is the patient or one of their doctors.
func (s *Service) Create(ctx context.Context, actor service.Actor, patientID uuid.UUID, req *model.HabitRequest) (*model.Habit, error) {
	if err := s.canManage(ctx, actor, patientID); err != nil {
		return nil, err
	}
	clean, err := normalize(req)
	if err != nil {
		return nil, err
	}
	h := &model.Habit{
		PatientID:       patientID,
		CreatedBy:       actor.ID,
		Name:            clean.Name,
		Description:     clean.Description,
		Frequency:       clean.Frequency,
		TargetPerPeriod: clean.TargetPerPeriod,
	}
	if err := s.store.Habits.Create(ctx, h); err != nil {
		return nil, apperrors.Internal(err)
	}
	return h, nil
}

func (s *Service) canManage(ctx context.Context, actor service.Actor, patientID uuid.UUID) error {
	switch {
	case actor.IsAdmin(), actor.ID == patientID:
		return nil
	case actor.IsDoctor():
		return service.EnsureLinked(ctx, s.store.Relationships, actor.ID, patientID)
	}
	return apperrors.Forbidden("")
}

func (s *Service) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Habit, error) {
	h, err := s.store.Habits.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepo("habit", err)
	}
	if err := s.canManage(ctx, actor, h.PatientID); err != nil {
		return nil, apperrors.NotFound("habit", nil)
	}
	return h, nil
}

func (s *Service) Update(ctx context.Context, actor service.Actor, id uuid.UUID, req *model.HabitRequest) (*model.Habit, error) {
	h, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	clean, err := normalize(req)
	if err != nil {
		return nil, err
	}
	h.Name = clean.Name
	h.Description = clean.Description
	h.Frequency = clean.Frequency
	h.TargetPerPeriod = clean.TargetPerPeriod
	if err := s.store.Habits.Update(ctx, h); err != nil {
		return nil, service.FromRepo("habit", err)
	}
	return h, nil
}

func (s *Service) SetArchived(ctx context.Context, actor service.Actor, id uuid.UUID, archived bool) (*model.Habit, error) {
	h, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	h.Archived = archived
	if err := s.store.Habits.Update(ctx, h); err != nil {
		return nil, service.FromRepo("habit", err)
	}
	return h, nil
}

func (s *Service) patientHabit(ctx context.Context, patientID, id uuid.UUID) (*model.Habit, error) {
	h, err := s.store.Habits.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepo("habit", err)
	}
	if h.PatientID != patientID {
		return nil, apperrors.NotFound("habit", nil)
	}
	return h, nil
}

func (s *Service) parseDate(ctx context.Context, patientID uuid.UUID, date string) (time.Time, error) {
	today := s.today(ctx, patientID)
	if date == "" {
		return today, nil
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, apperrors.BadRequest("date must be YYYY-MM-DD", err)
	}
	if d.After(today) {
		return time.Time{}, apperrors.BadRequest("cannot check in on a future date", nil)
	}
	return d, nil
}

// CheckIn marks the habit done on date (today when empty). Repeating a
// check-in for the same date changes nothing.
func (s *Service) CheckIn(ctx context.Context, patientID, id uuid.UUID, date string) (*model.HabitSummary, error) {
	h, err := s.patientHabit(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if h.Archived {
		return nil, apperrors.BadRequest("habit is archived", nil)
	}
	d, err := s.parseDate(ctx, patientID, date)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Habits.AddCheckIn(ctx, &model.HabitCheckIn{HabitID: h.ID, Date: d}); err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.summary(ctx, h, s.today(ctx, patientID))
}

func (s *Service) UndoCheckIn(ctx context.Context, patientID, id uuid.UUID, date string) (*model.HabitSummary, error) {
	h, err := s.patientHabit(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	d, err := s.parseDate(ctx, patientID, date)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Habits.RemoveCheckIn(ctx, h.ID, d); err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.summary(ctx, h, s.today(ctx, patientID))
}

// List returns the patient's habits with streaks and the last seven days.
func (s *Service) List(ctx context.Context, actor service.Actor, patientID uuid.UUID, includeArchived bool) ([]*model.HabitSummary, error) {
	if err := s.canManage(ctx, actor, patientID); err != nil {
		return nil, err
	}
	habits, err := s.store.Habits.ListByPatient(ctx, patientID, includeArchived)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	today := s.today(ctx, patientID)
	out := make([]*model.HabitSummary, 0, len(habits))
	for _, h := range habits {
		sum, err := s.summary(ctx, h, today)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) summary(ctx context.Context, h *model.Habit, today time.Time) (*model.HabitSummary, error) {
	checkIns, err := s.store.Habits.ListCheckIns(ctx, h.ID, today.Add(-history), today)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	days := make(map[string]bool, len(checkIns))
	for _, c := range checkIns {
		days[c.Date.UTC().Format(dateLayout)] = true
	}
	return &model.HabitSummary{
		Habit:         h,
		CurrentStreak: Streak(h.Frequency, h.TargetPerPeriod, days, today),
		DoneToday:     days[today.Format(dateLayout)],
		LastSevenDays: lastSevenDays(days, today),
	}, nil
}
