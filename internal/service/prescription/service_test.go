package prescription

import (
	"context"
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
	"github.com/jwalitptl/clinic-platform/internal/service/protocol"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *repository.Store
	sender   *email.LogSender
	now      time.Time
	doctor   *model.User
	patient  *model.User
	protocol *model.Protocol
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	sender := email.NewLogSender(zerolog.Nop())
	notifier := notification.NewService(email.NewService(email.NewRenderer("https://app.example.com"), sender, nil), nil, store.Devices, nil)

	f := &fixture{store: store, sender: sender, now: start.Add(9 * time.Hour)}
	f.svc = NewService(store, notifier, event.NewService(store.Outbox), audit.NewService(store.Audit)).
		WithClock(func() time.Time { return f.now })

	f.doctor = f.user(t, model.RoleDoctor)
	f.patient = f.user(t, model.RolePatient)
	require.NoError(t, store.Relationships.Create(ctx, &model.DoctorPatient{
		DoctorID: f.doctor.ID, PatientID: f.patient.ID, IsPrimary: true,
	}))

	f.protocol = &model.Protocol{
		DoctorID: f.doctor.ID,
		Title:    "Shoulder",
		Days: model.ProtocolDays{
			{DayNumber: 1, Sessions: []model.ProtocolSession{{Title: "am", Tasks: []model.ProtocolTask{
				{ID: "t1", Title: "Stretch", Kind: model.TaskKindExercise},
				{ID: "t2", Title: "Read", Kind: model.TaskKindReading},
			}}}},
			{DayNumber: 2, Sessions: []model.ProtocolSession{{Title: "am", Tasks: []model.ProtocolTask{
				{ID: "t3", Title: "Walk", Kind: model.TaskKindHabit},
			}}}},
		},
	}
	require.NoError(t, store.Protocols.Create(ctx, f.protocol))
	return f
}

func (f *fixture) user(t *testing.T, role string) *model.User {
	t.Helper()
	u := &model.User{
		Email:        uuid.NewString() + "@example.com",
		FirstName:    "Sam",
		LastName:     role,
		Role:         role,
		Status:       model.UserStatusActive,
		ReferralCode: uuid.NewString()[:8],
	}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) assign(t *testing.T) *model.Prescription {
	t.Helper()
	p, err := f.svc.Assign(context.Background(), f.doctor.ID, &model.AssignProtocolRequest{
		PatientID:  f.patient.ID,
		ProtocolID: f.protocol.ID,
		StartDate:  start.Format(dateLayout),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) outboxTypes(t *testing.T) []string {
	t.Helper()
	events, err := f.store.Outbox.ClaimPending(context.Background(), 100)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	return types
}

func TestService_Assign(t *testing.T) {
	f := setup(t)
	p := f.assign(t)

	assert.Equal(t, model.PrescriptionActive, p.Status)
	assert.True(t, start.Equal(p.StartDate))

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, f.patient.Email, sent[0].To)
	assert.Contains(t, sent[0].Text, "Shoulder")
	assert.Contains(t, f.outboxTypes(t), model.EventPrescriptionAssigned)

	logs, _, err := f.store.Audit.List(context.Background(), &model.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "prescription", logs[0].EntityType)

	_, err = f.svc.Assign(context.Background(), f.doctor.ID, &model.AssignProtocolRequest{
		PatientID: f.patient.ID, ProtocolID: f.protocol.ID,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict), "got %v", err)
}

func TestService_AssignRequiresLinkAndOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	stranger := f.user(t, model.RolePatient)
	_, err := f.svc.Assign(ctx, f.doctor.ID, &model.AssignProtocolRequest{PatientID: stranger.ID, ProtocolID: f.protocol.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden), "got %v", err)

	other := f.user(t, model.RoleDoctor)
	require.NoError(t, f.store.Relationships.Create(ctx, &model.DoctorPatient{DoctorID: other.ID, PatientID: f.patient.ID}))
	_, err = f.svc.Assign(ctx, other.ID, &model.AssignProtocolRequest{PatientID: f.patient.ID, ProtocolID: f.protocol.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound), "got %v", err)

	_, err = f.svc.Assign(ctx, f.doctor.ID, &model.AssignProtocolRequest{
		PatientID: f.patient.ID, ProtocolID: f.protocol.ID, StartDate: "03/02/2026",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestService_AssignDefaultsToToday(t *testing.T) {
	f := setup(t)
	p, err := f.svc.Assign(context.Background(), f.doctor.ID, &model.AssignProtocolRequest{
		PatientID: f.patient.ID, ProtocolID: f.protocol.ID,
	})
	require.NoError(t, err)
	assert.True(t, start.Equal(p.StartDate), "got %s", p.StartDate)
}

func TestService_TaskCompletionDrivesStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.assign(t)

	prog, err := f.svc.CompleteTask(ctx, f.patient.ID, p.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, prog.CompletedTasks)
	assert.InDelta(t, 33.33, prog.Percent, 0.01)

	// idempotent
	prog, err = f.svc.CompleteTask(ctx, f.patient.ID, p.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, prog.CompletedTasks)

	_, err = f.svc.CompleteTask(ctx, f.patient.ID, p.ID, "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = f.svc.CompleteTask(ctx, f.doctor.ID, p.ID, "t2")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = f.svc.CompleteTask(ctx, f.patient.ID, p.ID, "t2")
	require.NoError(t, err)
	prog, err = f.svc.CompleteTask(ctx, f.patient.ID, p.ID, "t3")
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionCompleted, prog.Prescription.Status)
	require.NotNil(t, prog.Prescription.CompletedAt)
	assert.Equal(t, float64(100), prog.Percent)

	prog, err = f.svc.UncompleteTask(ctx, f.patient.ID, p.ID, "t3")
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionActive, prog.Prescription.Status)
	assert.Nil(t, prog.Prescription.CompletedAt)
	assert.Equal(t, 2, prog.CompletedTasks)

	stored, err := f.store.Prescriptions.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionActive, stored.Status)
}

func (f *fixture) completeAll(t *testing.T, p *model.Prescription, taskIDs ...string) *model.PrescriptionProgress {
	t.Helper()
	var prog *model.PrescriptionProgress
	for _, id := range taskIDs {
		var err error
		prog, err = f.svc.CompleteTask(context.Background(), f.patient.ID, p.ID, id)
		require.NoError(t, err)
	}
	return prog
}

func (f *fixture) openCount(t *testing.T) int {
	t.Helper()
	list, err := f.store.Prescriptions.List(context.Background(), &model.PrescriptionFilters{
		PatientID: &f.patient.ID, ProtocolID: &f.protocol.ID,
	})
	require.NoError(t, err)
	n := 0
	for _, p := range list {
		if p.IsOpen() {
			n++
		}
	}
	return n
}

func TestService_UncompleteAfterReassign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.assign(t)
	prog := f.completeAll(t, first, "t1", "t2", "t3")
	require.Equal(t, model.PrescriptionCompleted, prog.Prescription.Status)

	second := f.assign(t)
	assert.Equal(t, model.PrescriptionActive, second.Status)

	_, err := f.svc.UncompleteTask(ctx, f.patient.ID, first.ID, "t3")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict), "got %v", err)
	assert.Equal(t, 1, f.openCount(t))

	stored, err := f.store.Prescriptions.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionCompleted, stored.Status)
	completions, err := f.store.Prescriptions.ListCompletions(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, completions, 3)
}

func TestService_UncompleteNotCompletedTaskKeepsStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.assign(t)
	f.completeAll(t, p, "t1", "t2", "t3")
	_, err := f.svc.UncompleteTask(ctx, f.patient.ID, p.ID, "t3")
	require.NoError(t, err)
	f.completeAll(t, p, "t3")

	prog, err := f.svc.UncompleteTask(ctx, f.patient.ID, p.ID, "missing")
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionCompleted, prog.Prescription.Status)
	assert.NotNil(t, prog.Prescription.CompletedAt)
}

func TestService_StatusFollowsProtocolChanges(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	protocols := protocol.NewService(f.store.Protocols, f.store.Prescriptions, f.store.Clinics, nil).
		WithReconciler(f.svc)
	doctor := service.Actor{ID: f.doctor.ID, Role: model.RoleDoctor}
	p := f.assign(t)
	f.completeAll(t, p, "t1", "t2")

	firstDay := f.protocol.Days[0]
	_, err := protocols.Update(ctx, doctor, f.protocol.ID, &model.ProtocolRequest{
		Title: f.protocol.Title,
		Days:  []model.ProtocolDay{firstDay},
	})
	require.NoError(t, err)

	stored, err := f.store.Prescriptions.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionCompleted, stored.Status)
	assert.Contains(t, f.outboxTypes(t), model.EventPrescriptionStatusChanged)
}

func TestService_DuplicateCompletionDerivesStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.assign(t)
	f.completeAll(t, p, "t1", "t2")

	// the protocol shrinks underneath the prescription
	f.protocol.Days = f.protocol.Days[:1]
	require.NoError(t, f.store.Protocols.Update(ctx, f.protocol))

	prog := f.completeAll(t, p, "t2")
	assert.Equal(t, 2, prog.CompletedTasks)
	assert.Equal(t, 2, prog.TotalTasks)
	assert.Equal(t, model.PrescriptionCompleted, prog.Prescription.Status)
}

func TestService_CompleteTaskRequiresActive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.assign(t)

	doctor := service.Actor{ID: f.doctor.ID, Role: model.RoleDoctor}
	_, err := f.svc.UpdateStatus(ctx, doctor, p.ID, model.PrescriptionPaused)
	require.NoError(t, err)

	_, err = f.svc.CompleteTask(ctx, f.patient.ID, p.ID, "t1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestService_UpdateStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.assign(t)
	doctor := service.Actor{ID: f.doctor.ID, Role: model.RoleDoctor}
	patient := service.Actor{ID: f.patient.ID, Role: model.RolePatient}

	_, err := f.svc.UpdateStatus(ctx, doctor, p.ID, model.PrescriptionCompleted)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	_, err = f.svc.UpdateStatus(ctx, patient, p.ID, model.PrescriptionPaused)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	got, err := f.svc.UpdateStatus(ctx, doctor, p.ID, model.PrescriptionPaused)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionPaused, got.Status)

	got, err = f.svc.UpdateStatus(ctx, doctor, p.ID, model.PrescriptionActive)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionActive, got.Status)

	got, err = f.svc.UpdateStatus(ctx, patient, p.ID, model.PrescriptionAbandoned)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionAbandoned, got.Status)

	_, err = f.svc.UpdateStatus(ctx, doctor, p.ID, model.PrescriptionActive)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	assert.Contains(t, f.outboxTypes(t), model.EventPrescriptionStatusChanged)

	// abandoned prescriptions no longer block reassignment
	f.assign(t)
}

func TestService_ProgressCurrentDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.assign(t)
	patient := service.Actor{ID: f.patient.ID, Role: model.RolePatient}

	tests := []struct {
		name string
		now  time.Time
		day  int
	}{
		{"before start", start.Add(-48 * time.Hour), 1},
		{"first day", start.Add(23 * time.Hour), 1},
		{"second day", start.Add(25 * time.Hour), 2},
		{"past the end", start.Add(30 * 24 * time.Hour), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.now = tt.now
			prog, err := f.svc.Progress(ctx, patient, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.day, prog.CurrentDay)
			require.NotNil(t, prog.Today)
			assert.Equal(t, tt.day, prog.Today.DayNumber)
			assert.Equal(t, 2, prog.TotalDays)
		})
	}

	outsider := service.Actor{ID: uuid.New(), Role: model.RolePatient}
	_, err := f.svc.Progress(ctx, outsider, p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_Today(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.assign(t)

	list, err := f.svc.Today(ctx, f.patient.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].Prescription.ID)
	assert.Equal(t, "Shoulder", list[0].ProtocolTitle)

	_, err = f.svc.UpdateStatus(ctx, service.Actor{ID: f.doctor.ID, Role: model.RoleDoctor}, p.ID, model.PrescriptionPaused)
	require.NoError(t, err)
	list, err = f.svc.Today(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
