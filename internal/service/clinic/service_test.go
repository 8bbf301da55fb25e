package clinic

import (
	"context"
	"testing"

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

type fixture struct {
	svc   *Service
	subs  *subscription.Service
	store *repository.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	events := event.NewService(store.Outbox)
	subs := subscription.NewService(store, events, nil)
	require.NoError(t, subs.SeedPlans(context.Background()))
	return &fixture{svc: NewService(store.Clinics, store.Users, subs, events, nil), subs: subs, store: store}
}

func (f *fixture) doctor(t *testing.T, email string) service.Actor {
	t.Helper()
	u := &model.User{
		Email:        email,
		FirstName:    "Dana",
		LastName:     email,
		Role:         model.RoleDoctor,
		Status:       model.UserStatusActive,
		ReferralCode: uuid.NewString()[:8],
	}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return service.Actor{ID: u.ID, Role: model.RoleDoctor}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Clinic", "acme-clinic"},
		{"  Dr. Smith's  Physio & Rehab!! ", "dr-smith-s-physio-rehab"},
		{"Zürich Care 24", "z-rich-care-24"},
		{"***", "clinic"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestService_Create_UniqueSlugs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.doctor(t, "a@example.com")

	var slugs []string
	for i := 0; i < 3; i++ {
		c, err := f.svc.Create(ctx, owner.ID, &model.CreateClinicRequest{Name: "Acme Clinic"})
		require.NoError(t, err)
		slugs = append(slugs, c.Slug)
	}
	assert.Equal(t, []string{"acme-clinic", "acme-clinic-2", "acme-clinic-3"}, slugs)

	member, err := f.store.Clinics.GetMember(ctx, mustClinic(t, f, "acme-clinic").ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClinicRoleOwner, member.Role)
}

func mustClinic(t *testing.T, f *fixture, slug string) *model.Clinic {
	t.Helper()
	c, err := f.store.Clinics.GetBySlug(context.Background(), slug)
	require.NoError(t, err)
	return c
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.doctor(t, "a@example.com")
	other := f.doctor(t, "b@example.com")

	first, err := f.svc.Create(ctx, owner.ID, &model.CreateClinicRequest{Name: "North"})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, owner.ID, &model.CreateClinicRequest{Name: "South"})
	require.NoError(t, err)

	name := "North Side"
	updated, err := f.svc.Update(ctx, owner, first.ID, &model.UpdateClinicRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "north", updated.Slug, "slug only changes on request")

	empty := ""
	updated, err = f.svc.Update(ctx, owner, first.ID, &model.UpdateClinicRequest{Slug: &empty})
	require.NoError(t, err)
	assert.Equal(t, "north-side", updated.Slug)

	taken := "north-side"
	updated, err = f.svc.Update(ctx, owner, second.ID, &model.UpdateClinicRequest{Slug: &taken})
	require.NoError(t, err)
	assert.Equal(t, "north-side-2", updated.Slug)

	_, err = f.svc.Update(ctx, other, first.ID, &model.UpdateClinicRequest{Name: &name})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	admin := service.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	_, err = f.svc.Update(ctx, admin, first.ID, &model.UpdateClinicRequest{Name: &name})
	assert.NoError(t, err)
}

func TestService_GetBySlug_Cached(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.doctor(t, "a@example.com")

	c, err := f.svc.Create(ctx, owner.ID, &model.CreateClinicRequest{Name: "Acme"})
	require.NoError(t, err)

	page, err := f.svc.GetBySlug(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Acme", page.Name)
	require.Len(t, page.Doctors, 1)
	assert.NotEmpty(t, page.Doctors[0].ReferralCode)

	c.Name = "Renamed behind the cache"
	require.NoError(t, f.store.Clinics.Update(ctx, c))
	page, err = f.svc.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", page.Name)

	_, err = f.svc.GetBySlug(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_Members(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.doctor(t, "a@example.com")
	colleague := f.doctor(t, "b@example.com")

	c, err := f.svc.Create(ctx, owner.ID, &model.CreateClinicRequest{Name: "Acme"})
	require.NoError(t, err)

	_, err = f.svc.AddMember(ctx, owner, c.ID, colleague.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrLimitExceeded), "free plan allows only the owner")

	_, err = f.subs.Subscribe(ctx, owner.ID, model.PlanPro)
	require.NoError(t, err)

	member, err := f.svc.AddMember(ctx, owner, c.ID, colleague.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClinicRoleDoctor, member.Role)

	_, err = f.svc.AddMember(ctx, owner, c.ID, colleague.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	members, err := f.svc.ListMembers(ctx, colleague, c.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	mine, err := f.svc.ListMine(ctx, colleague.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	err = f.svc.RemoveMember(ctx, owner, c.ID, owner.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	err = f.svc.RemoveMember(ctx, colleague, c.ID, colleague.ID)
	require.NoError(t, err)

	_, err = f.svc.ListMembers(ctx, colleague, c.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.doctor(t, "a@example.com")
	c, err := f.svc.Create(ctx, owner.ID, &model.CreateClinicRequest{Name: "Acme"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, owner, c.ID))
	_, err = f.svc.Get(ctx, owner, c.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
