package protocol

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
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	"github.com/jwalitptl/clinic-platform/internal/service/subscription"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

func day(n int, taskIDs ...string) model.ProtocolDay {
	tasks := make([]model.ProtocolTask, 0, len(taskIDs))
	for _, id := range taskIDs {
		tasks = append(tasks, model.ProtocolTask{ID: id, Title: "task " + id, Kind: model.TaskKindExercise})
	}
	return model.ProtocolDay{
		DayNumber: n,
		Sessions:  []model.ProtocolSession{{Title: "morning", Tasks: tasks}},
	}
}

func request(days ...model.ProtocolDay) *model.ProtocolRequest {
	return &model.ProtocolRequest{Title: "Knee rehab", Days: days}
}

type fixture struct {
	svc   *Service
	store *repository.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	subs := subscription.NewService(store, event.NewService(store.Outbox), nil)
	require.NoError(t, subs.SeedPlans(context.Background()))
	return &fixture{
		svc:   NewService(store.Protocols, store.Prescriptions, store.Clinics, subs),
		store: store,
	}
}

func doctor() service.Actor {
	return service.Actor{ID: uuid.New(), Role: model.RoleDoctor}
}

func TestNormalizeDays(t *testing.T) {
	t.Run("sorts days and fills ids", func(t *testing.T) {
		days, err := NormalizeDays([]model.ProtocolDay{day(2, ""), day(1, "a", "")})
		require.NoError(t, err)
		assert.Equal(t, 1, days[0].DayNumber)
		assert.Equal(t, "a", days[0].Sessions[0].Tasks[0].ID)
		assert.NotEmpty(t, days[0].Sessions[0].Tasks[1].ID)
		assert.NotEmpty(t, days[1].Sessions[0].Tasks[0].ID)
		assert.NotEqual(t, days[0].Sessions[0].Tasks[1].ID, days[1].Sessions[0].Tasks[0].ID)
	})

	tests := []struct {
		name string
		days []model.ProtocolDay
	}{
		{"empty", nil},
		{"does not start at one", []model.ProtocolDay{day(2, "a")}},
		{"duplicate day", []model.ProtocolDay{day(1, "a"), day(1, "b")}},
		{"duplicate task id", []model.ProtocolDay{day(1, "a"), day(2, "a")}},
		{"session without tasks", []model.ProtocolDay{day(1)}},
		{"no sessions", []model.ProtocolDay{{DayNumber: 1}}},
		{"unknown kind", []model.ProtocolDay{{DayNumber: 1, Sessions: []model.ProtocolSession{{
			Title: "s", Tasks: []model.ProtocolTask{{Title: "t", Kind: "dance"}},
		}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeDays(tt.days)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest), "got %v", err)
		})
	}
}

func TestService_CreateRespectsPlanLimit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doc := doctor()

	plan, err := f.store.Subscriptions.GetPlan(ctx, model.PlanFree)
	require.NoError(t, err)
	for i := 0; i < plan.MaxProtocols; i++ {
		_, err := f.svc.Create(ctx, doc.ID, request(day(1, "a")))
		require.NoError(t, err)
	}
	_, err = f.svc.Create(ctx, doc.ID, request(day(1, "a")))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrLimitExceeded), "got %v", err)
}

func TestService_OwnershipRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner, other := doctor(), doctor()

	p, err := f.svc.Create(ctx, owner.ID, request(day(1, "a")))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, other, p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = f.svc.Update(ctx, other, p.ID, request(day(1, "b")))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	admin := service.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	got, err := f.svc.Get(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	updated, err := f.svc.Update(ctx, owner, p.ID, &model.ProtocolRequest{Title: " Hip ", Days: []model.ProtocolDay{day(1, "a", "b")}})
	require.NoError(t, err)
	assert.Equal(t, "Hip", updated.Title)
	assert.Equal(t, 2, updated.TaskCount())
}

type recordingReconciler struct {
	seen []uuid.UUID
}

func (r *recordingReconciler) ReconcileProtocol(_ context.Context, p *model.Protocol) error {
	r.seen = append(r.seen, p.ID)
	return nil
}

func TestService_UpdateReconcilesPrescriptions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := doctor()
	rec := &recordingReconciler{}
	f.svc.WithReconciler(rec)

	p, err := f.svc.Create(ctx, owner.ID, request(day(1, "a"), day(2, "b")))
	require.NoError(t, err)
	assert.Empty(t, rec.seen)

	_, err = f.svc.Update(ctx, owner, p.ID, request(day(1, "a")))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p.ID}, rec.seen)
}

func TestService_DeleteBlockedByOpenPrescription(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doc := doctor()

	p, err := f.svc.Create(ctx, doc.ID, request(day(1, "a")))
	require.NoError(t, err)

	rx := &model.Prescription{
		DoctorID:   doc.ID,
		PatientID:  uuid.New(),
		ProtocolID: p.ID,
		Status:     model.PrescriptionActive,
		StartDate:  time.Now(),
	}
	require.NoError(t, f.store.Prescriptions.Create(ctx, rx))

	err = f.svc.Delete(ctx, doc, p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict), "got %v", err)

	rx.Status = model.PrescriptionAbandoned
	require.NoError(t, f.store.Prescriptions.Update(ctx, rx))
	require.NoError(t, f.svc.Delete(ctx, doc, p.ID))

	_, err = f.svc.Get(ctx, doc, p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_DuplicateSharedTemplate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner, member := doctor(), doctor()

	clinic := &model.Clinic{Name: "North", Slug: "north", OwnerID: owner.ID}
	require.NoError(t, f.store.Clinics.Create(ctx, clinic))
	require.NoError(t, f.store.Clinics.AddMember(ctx, &model.ClinicMember{
		ClinicID: clinic.ID, UserID: member.ID, Role: model.ClinicRoleDoctor,
	}))

	req := request(day(1, "a"))
	req.ClinicID = &clinic.ID
	req.IsTemplate = true
	tpl, err := f.svc.Create(ctx, owner.ID, req)
	require.NoError(t, err)

	cp, err := f.svc.Duplicate(ctx, member, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, cp.DoctorID)
	assert.Equal(t, "Knee rehab (copy)", cp.Title)
	assert.False(t, cp.IsTemplate)
	assert.Nil(t, cp.ClinicID)
	assert.True(t, cp.HasTask("a"))

	// members can read the template but not change it
	_, err = f.svc.Update(ctx, member, tpl.ID, request(day(1, "b")))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	outsider := doctor()
	_, err = f.svc.Duplicate(ctx, outsider, tpl.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_CreateInForeignClinic(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	clinic := &model.Clinic{Name: "South", Slug: "south", OwnerID: uuid.New()}
	require.NoError(t, f.store.Clinics.Create(ctx, clinic))

	req := request(day(1, "a"))
	req.ClinicID = &clinic.ID
	_, err := f.svc.Create(ctx, uuid.New(), req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
}
