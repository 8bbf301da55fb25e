package habit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/repository/memory"
	"github.com/jwalitptl/clinic-platform/internal/service"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

// 2026-03-11 is a Wednesday.
var wednesday = time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)

func set(dates ...string) map[string]bool {
	m := make(map[string]bool)
	for _, d := range dates {
		m[d] = true
	}
	return m
}

func TestStreak_Daily(t *testing.T) {
	tests := []struct {
		name string
		days map[string]bool
		want int
	}{
		{"none", set(), 0},
		{"today only", set("2026-03-11"), 1},
		{"through today", set("2026-03-09", "2026-03-10", "2026-03-11"), 3},
		{"today pending", set("2026-03-09", "2026-03-10"), 2},
		{"gap yesterday", set("2026-03-09", "2026-03-11"), 1},
		{"broken", set("2026-03-08", "2026-03-09"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(model.HabitDaily, 1, tt.days, wednesday))
		})
	}
}

func TestStreak_Weekly(t *testing.T) {
	tests := []struct {
		name   string
		target int
		days   map[string]bool
		want   int
	}{
		{"this week met", 1, set("2026-03-09"), 1},
		{"this week pending, last met", 2, set("2026-03-02", "2026-03-04", "2026-03-11"), 1},
		{"three weeks", 1, set("2026-02-23", "2026-03-04", "2026-03-10"), 3},
		{"sunday belongs to previous week", 2, set("2026-03-01", "2026-03-02"), 0},
		{"missed last week", 1, set("2026-02-25"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(model.HabitWeekly, tt.target, tt.days, wednesday))
		})
	}
}

func TestWeekStart(t *testing.T) {
	assert.Equal(t, "2026-03-09", weekStart(wednesday).Format(dateLayout))
	assert.Equal(t, "2026-03-09", weekStart(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)).Format(dateLayout))
	assert.Equal(t, "2026-03-16", weekStart(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)).Format(dateLayout))
}

type fixture struct {
	svc     *Service
	store   *repository.Store
	now     time.Time
	patient service.Actor
	doctor  service.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	f := &fixture{store: store, now: wednesday}
	f.svc = NewService(store).WithClock(func() time.Time { return f.now })

	p := &model.User{Email: "p@example.com", Role: model.RolePatient, Status: model.UserStatusActive, ReferralCode: "PAT00001"}
	require.NoError(t, store.Users.Create(ctx, p))
	f.patient = service.Actor{ID: p.ID, Role: model.RolePatient}
	f.doctor = service.Actor{ID: uuid.New(), Role: model.RoleDoctor}
	require.NoError(t, store.Relationships.Create(ctx, &model.DoctorPatient{DoctorID: f.doctor.ID, PatientID: p.ID}))
	return f
}

func TestService_CreatePermissions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := &model.HabitRequest{Name: " Walk ", Frequency: model.HabitDaily}

	h, err := f.svc.Create(ctx, f.patient, f.patient.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Walk", h.Name)
	assert.Equal(t, 1, h.TargetPerPeriod)

	h, err = f.svc.Create(ctx, f.doctor, f.patient.ID, req)
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, h.CreatedBy)

	stranger := service.Actor{ID: uuid.New(), Role: model.RoleDoctor}
	_, err = f.svc.Create(ctx, stranger, f.patient.ID, req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	other := service.Actor{ID: uuid.New(), Role: model.RolePatient}
	_, err = f.svc.Create(ctx, other, f.patient.ID, req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = f.svc.Create(ctx, f.patient, f.patient.ID, &model.HabitRequest{Name: "x", Frequency: model.HabitDaily, TargetPerPeriod: 3})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestService_CheckIn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h, err := f.svc.Create(ctx, f.patient, f.patient.ID, &model.HabitRequest{Name: "Stretch", Frequency: model.HabitDaily})
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, f.patient.ID, h.ID, "2026-03-10")
	require.NoError(t, err)
	sum, err := f.svc.CheckIn(ctx, f.patient.ID, h.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.CurrentStreak)
	assert.True(t, sum.DoneToday)
	require.Len(t, sum.LastSevenDays, 7)
	assert.Equal(t, "2026-03-11", sum.LastSevenDays[6].Date)
	assert.True(t, sum.LastSevenDays[5].Done)
	assert.False(t, sum.LastSevenDays[4].Done)

	// idempotent
	sum, err = f.svc.CheckIn(ctx, f.patient.ID, h.ID, "2026-03-11")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.CurrentStreak)

	_, err = f.svc.CheckIn(ctx, f.patient.ID, h.ID, "2026-03-12")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest), "future date")

	_, err = f.svc.CheckIn(ctx, f.doctor.ID, h.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	sum, err = f.svc.UndoCheckIn(ctx, f.patient.ID, h.ID, "2026-03-11")
	require.NoError(t, err)
	assert.False(t, sum.DoneToday)
	assert.Equal(t, 1, sum.CurrentStreak)

	_, err = f.svc.SetArchived(ctx, f.patient, h.ID, true)
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, f.patient.ID, h.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestService_TodayFollowsPatientTimezone(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.store.Users.Get(ctx, f.patient.ID)
	require.NoError(t, err)
	u.Timezone = "Pacific/Auckland"
	require.NoError(t, f.store.Users.Update(ctx, u))

	// 15:00 UTC Wednesday is already Thursday in Auckland
	h, err := f.svc.Create(ctx, f.patient, f.patient.ID, &model.HabitRequest{Name: "Sleep", Frequency: model.HabitDaily})
	require.NoError(t, err)
	sum, err := f.svc.CheckIn(ctx, f.patient.ID, h.ID, "2026-03-12")
	require.NoError(t, err)
	assert.True(t, sum.DoneToday)
}

func TestService_List(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	h, err := f.svc.Create(ctx, f.doctor, f.patient.ID, &model.HabitRequest{Name: "Swim", Frequency: model.HabitWeekly, TargetPerPeriod: 2})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.patient, f.patient.ID, &model.HabitRequest{Name: "Old", Frequency: model.HabitDaily})
	require.NoError(t, err)
	archived, err := f.svc.Create(ctx, f.patient, f.patient.ID, &model.HabitRequest{Name: "Gone", Frequency: model.HabitDaily})
	require.NoError(t, err)
	_, err = f.svc.SetArchived(ctx, f.patient, archived.ID, true)
	require.NoError(t, err)

	for _, d := range []string{"2026-03-02", "2026-03-05", "2026-03-09", "2026-03-10"} {
		_, err := f.svc.CheckIn(ctx, f.patient.ID, h.ID, d)
		require.NoError(t, err)
	}

	list, err := f.svc.List(ctx, f.doctor, f.patient.ID, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, sum := range list {
		if sum.Habit.ID == h.ID {
			assert.Equal(t, 2, sum.CurrentStreak)
		}
	}

	all, err := f.svc.List(ctx, f.patient, f.patient.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
