package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-platform/internal/email"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/repository/memory"
	"github.com/jwalitptl/clinic-platform/internal/service"
	"github.com/jwalitptl/clinic-platform/internal/service/audit"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	"github.com/jwalitptl/clinic-platform/internal/service/notification"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/push"
)

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	store   *repository.Store
	sender  *email.LogSender
	doctor  service.Actor
	patient service.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	sender := email.NewLogSender(zerolog.Nop())
	notifier := notification.NewService(email.NewService(email.NewRenderer(""), sender, nil), nil, store.Devices, nil)

	f := &fixture{
		svc:    NewService(store, notifier, event.NewService(store.Outbox), audit.NewService(store.Audit)).WithClock(func() time.Time { return now }),
		store:  store,
		sender: sender,
	}
	f.doctor = service.Actor{ID: f.user(t, model.RoleDoctor), Role: model.RoleDoctor}
	f.patient = service.Actor{ID: f.user(t, model.RolePatient), Role: model.RolePatient}
	require.NoError(t, store.Relationships.Create(ctx, &model.DoctorPatient{DoctorID: f.doctor.ID, PatientID: f.patient.ID}))
	return f
}

func (f *fixture) user(t *testing.T, role string) uuid.UUID {
	t.Helper()
	u := &model.User{
		Email:        uuid.NewString() + "@example.com",
		FirstName:    "Kim",
		LastName:     role,
		Role:         role,
		Status:       model.UserStatusActive,
		ReferralCode: uuid.NewString()[:8],
	}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return u.ID
}

func (f *fixture) book(t *testing.T, start time.Time, d time.Duration) *model.Appointment {
	t.Helper()
	apt, err := f.svc.Book(context.Background(), f.doctor.ID, &model.CreateAppointmentRequest{
		PatientID: f.patient.ID, StartsAt: start, EndsAt: start.Add(d),
	})
	require.NoError(t, err)
	return apt
}

func TestService_BookValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	start := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		req  *model.CreateAppointmentRequest
		code apperrors.ErrorCode
	}{
		{"ends before start", &model.CreateAppointmentRequest{PatientID: f.patient.ID, StartsAt: start, EndsAt: start}, apperrors.ErrBadRequest},
		{"too long", &model.CreateAppointmentRequest{PatientID: f.patient.ID, StartsAt: start, EndsAt: start.Add(9 * time.Hour)}, apperrors.ErrBadRequest},
		{"in the past", &model.CreateAppointmentRequest{PatientID: f.patient.ID, StartsAt: now.Add(-time.Hour), EndsAt: now}, apperrors.ErrBadRequest},
		{"unlinked patient", &model.CreateAppointmentRequest{PatientID: uuid.New(), StartsAt: start, EndsAt: start.Add(time.Hour)}, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, f.doctor.ID, tt.req)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	apt := f.book(t, start, MaxAppointmentDuration)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
}

func TestService_BookConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	start := now.Add(24 * time.Hour)
	first := f.book(t, start, time.Hour)

	_, err := f.svc.Book(ctx, f.doctor.ID, &model.CreateAppointmentRequest{
		PatientID: f.patient.ID, StartsAt: start.Add(30 * time.Minute), EndsAt: start.Add(90 * time.Minute),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	// back to back is fine
	f.book(t, start.Add(time.Hour), time.Hour)

	// cancelled slots free up
	_, err = f.svc.Cancel(ctx, f.patient, first.ID, "sick")
	require.NoError(t, err)
	f.book(t, start, time.Hour)
}

func TestService_RescheduleAndComplete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	apt := f.book(t, now.Add(2*time.Hour), time.Hour)

	_, err := f.svc.Reschedule(ctx, f.patient, apt.ID, &model.RescheduleAppointmentRequest{
		StartsAt: now.Add(3 * time.Hour), EndsAt: now.Add(4 * time.Hour),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	moved, err := f.svc.Reschedule(ctx, f.doctor, apt.ID, &model.RescheduleAppointmentRequest{
		StartsAt: now.Add(2*time.Hour + 30*time.Minute), EndsAt: now.Add(3*time.Hour + 30*time.Minute),
	})
	require.NoError(t, err, "overlap with itself is ignored")
	assert.Equal(t, now.Add(2*time.Hour+30*time.Minute), moved.StartsAt)

	done, err := f.svc.Complete(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	_, err = f.svc.Cancel(ctx, f.doctor, apt.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestService_CancelNotifies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	apt := f.book(t, now.Add(24*time.Hour), time.Hour)

	stranger := service.Actor{ID: uuid.New(), Role: model.RolePatient}
	_, err := f.svc.Cancel(ctx, stranger, apt.ID, "x")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	cancelled, err := f.svc.Cancel(ctx, f.doctor, apt.ID, "clinic closed")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "clinic closed")

	events, err := f.store.Outbox.ClaimPending(ctx, 10)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.ElementsMatch(t, []string{model.EventAppointmentBooked, model.EventAppointmentCancelled}, types)
}

func TestService_SendReminders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	soon := f.book(t, now.Add(2*time.Hour), time.Hour)
	f.book(t, now.Add(48*time.Hour), time.Hour)

	sent, err := f.svc.SendReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, f.sender.Sent(), 1)

	got, err := f.store.Appointments.Get(ctx, soon.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)

	sent, err = f.svc.SendReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

type downSender struct{}

func (downSender) Send(context.Context, *email.Message) error { return errors.New("smtp down") }

type countingNotifier struct{ calls int }

func (n *countingNotifier) Send(_ context.Context, _ []string, _ push.Notification) ([]string, error) {
	n.calls++
	return nil, nil
}

func TestService_SendRemindersWhenEmailFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pusher := &countingNotifier{}
	notifier := notification.NewService(email.NewService(email.NewRenderer(""), downSender{}, nil), pusher, f.store.Devices, nil)
	f.svc = NewService(f.store, notifier, event.NewService(f.store.Outbox), audit.NewService(f.store.Audit)).
		WithClock(func() time.Time { return now })
	apt := f.book(t, now.Add(2*time.Hour), time.Hour)

	// nothing reached the patient: retried on the next run
	sent, err := f.svc.SendReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, sent)
	got, err := f.store.Appointments.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent)

	_, err = notifier.RegisterDevice(ctx, f.patient.ID, &model.RegisterDeviceRequest{Token: "tok", Platform: "ios"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.svc.SendReminders(ctx, 24*time.Hour)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, pusher.calls)

	got, err = f.store.Appointments.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)
}

func TestService_List(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.book(t, now.Add(2*time.Hour), time.Hour)
	f.book(t, now.Add(72*time.Hour), time.Hour)

	list, err := f.svc.List(ctx, &model.AppointmentFilters{PatientID: &f.patient.ID, To: now.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
