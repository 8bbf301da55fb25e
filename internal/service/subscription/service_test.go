package subscription

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
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T) (*Service, *repository.Store, *clock) {
	t.Helper()
	store := memory.NewStore()
	c := &clock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	svc := NewService(store, event.NewService(store.Outbox), nil).WithClock(c.now)
	require.NoError(t, svc.SeedPlans(context.Background()))
	return svc, store, c
}

func linkPatients(t *testing.T, store *repository.Store, doctorID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Relationships.Create(context.Background(), &model.DoctorPatient{
			DoctorID:  doctorID,
			PatientID: uuid.New(),
			IsPrimary: true,
		}))
	}
}

func TestService_CheckLimit_FreePlanByDefault(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	doctorID := uuid.New()

	linkPatients(t, store, doctorID, 4)
	require.NoError(t, svc.CheckLimit(ctx, doctorID, model.ResourcePatients))

	linkPatients(t, store, doctorID, 1)
	err := svc.CheckLimit(ctx, doctorID, model.ResourcePatients)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrLimitExceeded))
}

func TestService_CheckLimit_UnlimitedPlan(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	doctorID := uuid.New()

	_, err := svc.Subscribe(ctx, doctorID, model.PlanClinic)
	require.NoError(t, err)
	linkPatients(t, store, doctorID, 10)

	assert.NoError(t, svc.CheckLimit(ctx, doctorID, model.ResourcePatients))
}

func TestService_Subscribe(t *testing.T) {
	svc, _, c := setup(t)
	ctx := context.Background()
	doctorID := uuid.New()

	sub, err := svc.Subscribe(ctx, doctorID, model.PlanPro)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionTrialing, sub.Status)
	assert.Equal(t, c.t.Add(trialPeriod), sub.CurrentPeriodEnd)

	_, err = svc.Subscribe(ctx, doctorID, "platinum")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	overview, err := svc.Overview(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, overview.Plan.Code)
}

func TestService_ChangePlan_DowngradeRejectedOverUsage(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	doctorID := uuid.New()

	_, err := svc.Subscribe(ctx, doctorID, model.PlanPro)
	require.NoError(t, err)
	linkPatients(t, store, doctorID, 6)

	_, err = svc.ChangePlan(ctx, doctorID, model.PlanFree)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrLimitExceeded))

	sub, err := svc.ChangePlan(ctx, doctorID, model.PlanClinic)
	require.NoError(t, err)
	assert.Equal(t, model.PlanClinic, sub.PlanCode)
}

func TestService_ExpirePeriods(t *testing.T) {
	svc, store, c := setup(t)
	ctx := context.Background()

	canceled := uuid.New()
	_, err := svc.Subscribe(ctx, canceled, model.PlanFree)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, canceled)
	require.NoError(t, err)

	renewing := uuid.New()
	_, err = svc.Subscribe(ctx, renewing, model.PlanFree)
	require.NoError(t, err)

	trial := uuid.New()
	_, err = svc.Subscribe(ctx, trial, model.PlanPro)
	require.NoError(t, err)

	c.t = c.t.AddDate(0, 1, 1)
	expired, renewed, err := svc.ExpirePeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, renewed)

	sub, err := store.Subscriptions.GetByDoctor(ctx, canceled)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionExpired, sub.Status)

	sub, err = store.Subscriptions.GetByDoctor(ctx, renewing)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.After(c.t))

	sub, err = store.Subscriptions.GetByDoctor(ctx, trial)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionPastDue, sub.Status)
}

func TestService_ExpirePeriodsRenewsOneInterval(t *testing.T) {
	svc, store, c := setup(t)
	ctx := context.Background()
	doctorID := uuid.New()

	sub, err := svc.Subscribe(ctx, doctorID, model.PlanFree)
	require.NoError(t, err)
	firstEnd := sub.CurrentPeriodEnd

	c.t = c.t.AddDate(0, 3, 1)
	_, renewed, err := svc.ExpirePeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)

	sub, err = store.Subscriptions.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.True(t, firstEnd.Equal(sub.CurrentPeriodStart), "got %s", sub.CurrentPeriodStart)
	assert.True(t, firstEnd.AddDate(0, 1, 0).Equal(sub.CurrentPeriodEnd), "got %s", sub.CurrentPeriodEnd)

	// the next run picks up the following period
	_, renewed, err = svc.ExpirePeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
}

func TestService_RecordPayment(t *testing.T) {
	svc, store, c := setup(t)
	ctx := context.Background()
	doctorID := uuid.New()

	sub, err := svc.Subscribe(ctx, doctorID, model.PlanPro)
	require.NoError(t, err)

	payment, err := svc.RecordPayment(ctx, &model.RecordPaymentRequest{
		SubscriptionID: sub.ID,
		AmountCents:    4900,
		Reference:      "inv-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4900), payment.AmountCents)

	sub, err = store.Subscriptions.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Equal(t, c.t.AddDate(0, 1, 0), sub.CurrentPeriodEnd)

	_, err = svc.RecordPayment(ctx, &model.RecordPaymentRequest{SubscriptionID: uuid.New(), Reference: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
