package notification

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
	"github.com/jwalitptl/clinic-platform/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/metrics"
	"github.com/jwalitptl/clinic-platform/pkg/push"
)

type fakeNotifier struct {
	sent    [][]string
	invalid []string
}

func (f *fakeNotifier) Send(_ context.Context, tokens []string, _ push.Notification) ([]string, error) {
	f.sent = append(f.sent, tokens)
	return f.invalid, nil
}

type failingSender struct{ calls int }

func (f *failingSender) Send(context.Context, *email.Message) error {
	f.calls++
	return errors.New("smtp down")
}

func setup(t *testing.T) (*Service, *email.LogSender, *fakeNotifier) {
	t.Helper()
	store := memory.NewStore()
	sender := email.NewLogSender(zerolog.Nop())
	notifier := &fakeNotifier{}
	svc := NewService(email.NewService(email.NewRenderer("https://app.example.com"), sender, nil), notifier, store.Devices, metrics.NewNop())
	return svc, sender, notifier
}

func TestService_PushRemovesInvalidTokens(t *testing.T) {
	svc, _, notifier := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	for _, tok := range []string{"good", "stale"} {
		_, err := svc.RegisterDevice(ctx, userID, &model.RegisterDeviceRequest{Token: tok, Platform: "ios"})
		require.NoError(t, err)
	}
	notifier.invalid = []string{"stale"}

	svc.Push(ctx, userID, push.Notification{Title: "hi"})

	require.Len(t, notifier.sent, 1)
	assert.ElementsMatch(t, []string{"good", "stale"}, notifier.sent[0])

	devices, err := svc.ListDevices(ctx, userID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "good", devices[0].Token)
}

func TestService_PushWithoutDevices(t *testing.T) {
	svc, _, notifier := setup(t)
	svc.Push(context.Background(), uuid.New(), push.Notification{Title: "hi"})
	assert.Empty(t, notifier.sent)
}

func TestService_Welcome(t *testing.T) {
	svc, sender, _ := setup(t)
	user := &model.User{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	user.ID = uuid.New()

	svc.Welcome(context.Background(), user)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.com", sent[0].To)
	assert.Contains(t, sent[0].Text, "Hi Ada Lovelace")
}

func TestService_UnregisterUnknownDevice(t *testing.T) {
	svc, _, _ := setup(t)
	err := svc.UnregisterDevice(context.Background(), uuid.New(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_AppointmentReminderFallsBackToPush(t *testing.T) {
	store := memory.NewStore()
	notifier := &fakeNotifier{}
	sender := &failingSender{}
	svc := NewService(email.NewService(email.NewRenderer(""), sender, nil), notifier, store.Devices, metrics.NewNop())
	ctx := context.Background()

	patient := &model.User{Email: "pat@example.com", FirstName: "Pat"}
	patient.ID = uuid.New()
	doctor := &model.User{Email: "doc@example.com", FirstName: "Doc"}
	appt := &model.Appointment{StartsAt: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	appt.ID = uuid.New()

	err := svc.AppointmentReminder(ctx, patient, doctor, appt)
	assert.Error(t, err, "no channel delivered")
	assert.Empty(t, notifier.sent)

	_, err = svc.RegisterDevice(ctx, patient.ID, &model.RegisterDeviceRequest{Token: "tok", Platform: "android"})
	require.NoError(t, err)
	require.NoError(t, svc.AppointmentReminder(ctx, patient, doctor, appt))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, 2, sender.calls)

	notifier.invalid = []string{"tok"}
	assert.Error(t, svc.AppointmentReminder(ctx, patient, doctor, appt))
}
