package referral

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

func createUser(t *testing.T, store *repository.Store, email, code string) *model.User {
	t.Helper()
	u := &model.User{
		Email:        email,
		FirstName:    "Dana",
		LastName:     "Doc",
		Role:         model.RoleDoctor,
		Status:       model.UserStatusActive,
		ReferralCode: code,
	}
	require.NoError(t, store.Users.Create(context.Background(), u))
	return u
}

func TestService_GenerateUniqueCode(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Users, store.Referrals, config.ReferralConfig{})

	code, err := svc.GenerateUniqueCode(context.Background())
	require.NoError(t, err)
	assert.Len(t, code, defaultCodeLength)
	for _, ch := range code {
		assert.True(t, strings.ContainsRune(Alphabet, ch), "unexpected character %q", ch)
	}
}

func TestService_GenerateUniqueCode_RetriesOnCollision(t *testing.T) {
	store := memory.NewStore()
	createUser(t, store, "a@example.com", "TAKEN")

	svc := NewService(store.Users, store.Referrals, config.ReferralConfig{CodeLength: 5, MaxAttempts: 3})
	draws := []string{"TAKEN", "TAKEN", "FRESH"}
	svc.generate = func(int) (string, error) {
		next := draws[0]
		draws = draws[1:]
		return next, nil
	}

	code, err := svc.GenerateUniqueCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FRESH", code)
}

func TestService_GenerateUniqueCode_Exhausted(t *testing.T) {
	store := memory.NewStore()
	createUser(t, store, "a@example.com", "TAKEN")

	svc := NewService(store.Users, store.Referrals, config.ReferralConfig{MaxAttempts: 4})
	calls := 0
	svc.generate = func(int) (string, error) {
		calls++
		return "TAKEN", nil
	}

	_, err := svc.GenerateUniqueCode(context.Background())
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.EqualError(t, err, "referral code space exhausted")
	assert.Equal(t, 4, calls)
}

func TestService_LookupIsCaseInsensitive(t *testing.T) {
	store := memory.NewStore()
	createUser(t, store, "a@example.com", "ABCD2345")
	svc := NewService(store.Users, store.Referrals, config.ReferralConfig{})

	got, err := svc.Lookup(context.Background(), " abcd2345 ")
	require.NoError(t, err)
	assert.Equal(t, "Dana Doc", got.ReferrerName)
	assert.Equal(t, "ABCD2345", got.Code)

	_, err = svc.Lookup(context.Background(), "ZZZZ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = svc.Resolve(context.Background(), "ZZZZ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestService_RecordAndStats(t *testing.T) {
	store := memory.NewStore()
	referrer := createUser(t, store, "a@example.com", "AAAA")
	svc := NewService(store.Users, store.Referrals, config.ReferralConfig{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		referred := createUser(t, store, uuid.NewString()+"@example.com", uuid.NewString()[:8])
		require.NoError(t, svc.Record(ctx, referrer, referred))
	}

	refs, err := svc.ListMine(ctx, referrer.ID)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "AAAA", refs[0].Code)
	assert.Equal(t, "Dana Doc", refs[0].ReferredName)

	stats, err := svc.Stats(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	var sum int
	for _, n := range stats.ByMonth {
		sum += n
	}
	assert.Equal(t, 2, sum)
}
