package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/repository/memory"
)

func setup(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store.Audit), store
}

func TestService_LogCapturesClient(t *testing.T) {
	svc, store := setup(t)
	ctx := WithClient(context.Background(), "10.0.0.7", "curl/8.0")
	userID, entityID := uuid.New(), uuid.New()

	require.NoError(t, svc.Log(ctx, &userID, model.AuditActionCreate, model.AuditEntityUser, &entityID,
		map[string]interface{}{"role": model.RoleDoctor}))

	logs, total, err := store.Audit.List(context.Background(), &model.AuditFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "10.0.0.7", logs[0].IPAddress)
	assert.Equal(t, "curl/8.0", logs[0].UserAgent)
	assert.Equal(t, userID, *logs[0].UserID)
	assert.Equal(t, model.RoleDoctor, logs[0].Changes["role"])
}

type brokenRepo struct {
	repository.AuditRepository
}

func (brokenRepo) Create(context.Context, *model.AuditLog) error {
	return errors.New("disk full")
}

func TestService_RecordSwallowsErrors(t *testing.T) {
	svc := NewService(brokenRepo{})
	err := svc.Log(context.Background(), nil, model.AuditActionDelete, "clinic", nil, nil)
	assert.EqualError(t, err, "failed to write audit log: disk full")

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), uuid.New(), model.AuditActionDelete, "clinic", uuid.New(), nil)
	})
}

func TestService_ListFilters(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	svc.Record(ctx, alice, model.AuditActionCreate, "protocol", uuid.New(), nil)
	svc.Record(ctx, alice, model.AuditActionUpdate, "protocol", uuid.New(), nil)
	svc.Record(ctx, bob, model.AuditActionUpdate, "clinic", uuid.New(), nil)

	tests := []struct {
		name    string
		filters model.AuditFilters
		want    int64
	}{
		{"all", model.AuditFilters{}, 3},
		{"by user", model.AuditFilters{UserID: &alice}, 2},
		{"by action", model.AuditFilters{Action: model.AuditActionUpdate}, 2},
		{"by entity", model.AuditFilters{EntityType: "clinic"}, 1},
		{"combined", model.AuditFilters{UserID: &bob, EntityType: "protocol"}, 0},
		{"future window", model.AuditFilters{From: time.Now().Add(time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filters
			_, total, err := svc.List(ctx, &f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
		})
	}

	page, total, err := svc.List(ctx, &model.AuditFilters{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)
}

func TestService_Stats(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	user := uuid.New()

	svc.Record(ctx, user, model.AuditActionCreate, "protocol", uuid.New(), nil)
	svc.Record(ctx, user, model.AuditActionUpdate, "protocol", uuid.New(), nil)
	svc.Record(ctx, user, model.AuditActionUpdate, "clinic", uuid.New(), nil)

	stats, err := svc.Stats(ctx, &model.AuditFilters{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalLogs)
	assert.Equal(t, map[string]int{model.AuditActionCreate: 1, model.AuditActionUpdate: 2}, stats.ActionCounts)
	assert.Equal(t, map[string]int{"protocol": 2, "clinic": 1}, stats.EntityCounts)
}

func TestService_Cleanup(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	old := &model.AuditLog{Action: model.AuditActionCreate, EntityType: "clinic", CreatedAt: time.Now().UTC().AddDate(0, 0, -100)}
	require.NoError(t, store.Audit.Create(ctx, old))
	svc.Record(ctx, uuid.New(), model.AuditActionUpdate, "clinic", uuid.New(), nil)

	removed, err := svc.Cleanup(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	logs, _, err := svc.List(ctx, &model.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdate, logs[0].Action)
}
