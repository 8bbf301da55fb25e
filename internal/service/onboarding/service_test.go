package onboarding

import (
	"bytes"
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
	"github.com/jwalitptl/clinic-platform/internal/service/relationship"
	"github.com/jwalitptl/clinic-platform/internal/service/subscription"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/security"
)

type stubAccounts struct {
	store *repository.Store
}

func (a *stubAccounts) ProvisionPatient(ctx context.Context, addr, first, last string) (*model.User, bool, error) {
	if u, err := a.store.Users.GetByEmail(ctx, addr); err == nil {
		return u, false, nil
	}
	u := &model.User{
		Email:        model.NormalizeEmail(addr),
		FirstName:    first,
		LastName:     last,
		Role:         model.RolePatient,
		Status:       model.UserStatusPending,
		ReferralCode: uuid.NewString()[:8],
	}
	return u, true, a.store.Users.Create(ctx, u)
}

func (a *stubAccounts) ActivatePatient(ctx context.Context, id uuid.UUID, password, first, last string) (*model.User, error) {
	u, err := a.store.Users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Status == model.UserStatusPending {
		if password == "" {
			return nil, apperrors.BadRequest("password is required to activate the account", nil)
		}
		u.PasswordHash = "hashed:" + password
		u.Status = model.UserStatusActive
	}
	return u, a.store.Users.Update(ctx, u)
}

type fixture struct {
	svc    *Service
	store  *repository.Store
	sender *email.LogSender
	now    time.Time
	doctor *model.User
}

func intp(v int) *int { return &v }

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	events := event.NewService(store.Outbox)
	subs := subscription.NewService(store, events, nil)
	require.NoError(t, subs.SeedPlans(ctx))

	sender := email.NewLogSender(zerolog.Nop())
	notifier := notification.NewService(email.NewService(email.NewRenderer("https://app.example.com"), sender, nil), nil, store.Devices, nil)
	accounts := &stubAccounts{store: store}
	rels := relationship.NewService(store.Relationships, store.Users, subs, events, accounts)

	key := bytes.Repeat([]byte{7}, 32)
	enc, err := security.NewAESEncryptor(key)
	require.NoError(t, err)

	f := &fixture{store: store, sender: sender, now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	f.svc = NewService(store, accounts, rels, subs, notifier, events, audit.NewService(store.Audit), enc, "https://app.example.com/").
		WithClock(func() time.Time { return f.now })

	f.doctor = &model.User{
		Email: "doc@example.com", FirstName: "Ada", LastName: "Lovelace",
		Role: model.RoleDoctor, Status: model.UserStatusActive, ReferralCode: "DOCCODE1",
	}
	require.NoError(t, store.Users.Create(ctx, f.doctor))
	return f
}

func templateRequest() *model.OnboardingTemplateRequest {
	return &model.OnboardingTemplateRequest{
		Name: "Intake",
		Steps: []model.OnboardingStep{
			{Title: "About you", Questions: []model.OnboardingQuestion{
				{ID: "goal", Label: "Goal", Kind: model.QuestionText, Required: true},
				{ID: "pain", Label: "Pain", Kind: model.QuestionScale, Required: true, Min: intp(0), Max: intp(10)},
				{ID: "areas", Label: "Areas", Kind: model.QuestionMultiChoice, Options: []string{"back", "knee"}},
			}},
			{Title: "History", Questions: []model.OnboardingQuestion{
				{ID: "surgery", Label: "Surgery", Kind: model.QuestionBoolean},
				{ID: "since", Label: "Since", Kind: model.QuestionDate},
				{ID: "level", Label: "Level", Kind: model.QuestionSingleChoice, Options: []string{"low", "high"}},
			}},
		},
	}
}

func (f *fixture) invite(t *testing.T) *model.OnboardingInvite {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.CreateTemplate(ctx, f.doctor.ID, templateRequest())
	require.NoError(t, err)
	inv, err := f.svc.SendInvite(ctx, f.doctor.ID, &model.SendInviteRequest{Email: "New.Patient@Example.com", FirstName: "Nia"})
	require.NoError(t, err)
	return inv
}

func TestNormalizeSteps(t *testing.T) {
	steps, err := normalizeSteps([]model.OnboardingStep{{Title: "s", Questions: []model.OnboardingQuestion{
		{Label: "a", Kind: model.QuestionText},
		{Label: "b", Kind: model.QuestionBoolean},
	}}})
	require.NoError(t, err)
	assert.NotEmpty(t, steps[0].Questions[0].ID)
	assert.NotEqual(t, steps[0].Questions[0].ID, steps[0].Questions[1].ID)

	bad := [][]model.OnboardingStep{
		nil,
		{{Title: "empty"}},
		{{Title: "s", Questions: []model.OnboardingQuestion{{Label: "c", Kind: model.QuestionSingleChoice}}}},
		{{Title: "s", Questions: []model.OnboardingQuestion{{Label: "d", Kind: model.QuestionScale, Min: intp(5), Max: intp(5)}}}},
		{{Title: "s", Questions: []model.OnboardingQuestion{{ID: "x", Label: "e", Kind: model.QuestionText}, {ID: "x", Label: "f", Kind: model.QuestionText}}}},
	}
	for _, steps := range bad {
		_, err := normalizeSteps(steps)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest), "steps %+v", steps)
	}
}

func TestValidateAnswers(t *testing.T) {
	tpl := &model.OnboardingTemplate{}
	steps, err := normalizeSteps(templateRequest().Steps)
	require.NoError(t, err)
	tpl.Steps = steps

	clean, err := validateAnswers(tpl, map[string]interface{}{
		"goal":    "walk again",
		"pain":    float64(4),
		"areas":   []interface{}{"knee"},
		"surgery": false,
		"since":   "2025-12-01",
		"level":   "",
	})
	require.NoError(t, err)
	assert.Len(t, clean, 5)
	assert.NotContains(t, clean, "level")

	tests := []struct {
		name    string
		answers map[string]interface{}
		want    string
	}{
		{"missing required", map[string]interface{}{"pain": 3}, "Goal is required"},
		{"scale out of range", map[string]interface{}{"goal": "x", "pain": 11}, "between 0 and 10"},
		{"scale fraction", map[string]interface{}{"goal": "x", "pain": 2.5}, "whole number"},
		{"bad option", map[string]interface{}{"goal": "x", "pain": 1, "areas": []interface{}{"hip"}}, `"hip" is not an option`},
		{"bad boolean", map[string]interface{}{"goal": "x", "pain": 1, "surgery": "yes"}, "true or false"},
		{"bad date", map[string]interface{}{"goal": "x", "pain": 1, "since": "yesterday"}, "YYYY-MM-DD"},
		{"bad single choice", map[string]interface{}{"goal": "x", "pain": 1, "level": "mid"}, "one of low, high"},
		{"unknown question", map[string]interface{}{"goal": "x", "pain": 1, "shoe": "42"}, `unknown question "shoe"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateAnswers(tpl, tt.answers)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestService_FirstTemplateIsDefault(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doctor := service.Actor{ID: f.doctor.ID, Role: model.RoleDoctor}

	first, err := f.svc.CreateTemplate(ctx, f.doctor.ID, templateRequest())
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := f.svc.CreateTemplate(ctx, f.doctor.ID, templateRequest())
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	_, err = f.svc.SetDefaultTemplate(ctx, doctor, second.ID)
	require.NoError(t, err)
	got, err := f.svc.GetTemplate(ctx, doctor, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)

	other := service.Actor{ID: uuid.New(), Role: model.RoleDoctor}
	_, err = f.svc.GetTemplate(ctx, other, first.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_SendInvite(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.SendInvite(ctx, f.doctor.ID, &model.SendInviteRequest{Email: "a@example.com"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest), "no template yet")

	inv := f.invite(t)
	assert.Equal(t, "new.patient@example.com", inv.Email)
	assert.Equal(t, model.InvitePending, inv.Status)
	assert.Equal(t, f.now.Add(InviteTTL), inv.ExpiresAt)
	assert.NotEmpty(t, inv.Token)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "https://app.example.com/onboarding/"+inv.Token)

	pub, err := f.svc.GetInvite(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", pub.DoctorName)
	require.NotNil(t, pub.Template)
	assert.Len(t, pub.Template.Questions(), 6)

	_, err = f.svc.GetInvite(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_SendInviteToNonPatient(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateTemplate(ctx, f.doctor.ID, templateRequest())
	require.NoError(t, err)

	_, err = f.svc.SendInvite(ctx, f.doctor.ID, &model.SendInviteRequest{Email: f.doctor.Email})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
}

func TestService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.invite(t)

	answers := map[string]interface{}{"goal": "run", "pain": float64(3)}
	resp, err := f.svc.Submit(ctx, inv.Token, &model.SubmitOnboardingRequest{Password: "s3cret-pass", Answers: answers})
	require.NoError(t, err)
	assert.Equal(t, "run", resp.Answers["goal"])

	patient, err := f.store.Users.GetByEmail(ctx, "new.patient@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusActive, patient.Status)
	assert.Equal(t, "Nia", patient.FirstName)
	assert.Equal(t, patient.ID, resp.PatientID)

	rel, err := f.store.Relationships.Find(ctx, f.doctor.ID, patient.ID)
	require.NoError(t, err)
	assert.True(t, rel.IsPrimary)

	stored, err := f.store.Onboarding.GetResponse(ctx, resp.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Ciphertext), "run", "answers are encrypted at rest")

	got, err := f.svc.GetResponse(ctx, service.Actor{ID: f.doctor.ID, Role: model.RoleDoctor}, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "run", got.Answers["goal"])
	assert.Equal(t, float64(3), got.Answers["pain"])

	list, err := f.svc.ListResponses(ctx, f.doctor.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "run", list[0].Answers["goal"])

	_, err = f.svc.GetResponse(ctx, service.Actor{ID: uuid.New(), Role: model.RoleDoctor}, resp.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = f.svc.Submit(ctx, inv.Token, &model.SubmitOnboardingRequest{Password: "s3cret-pass", Answers: answers})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	invites, err := f.svc.ListInvites(ctx, f.doctor.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, model.InviteCompleted, invites[0].Status)
}

func TestService_SubmitRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.invite(t)

	_, err := f.svc.Submit(ctx, inv.Token, &model.SubmitOnboardingRequest{Password: "s3cret-pass", Answers: map[string]interface{}{"pain": 3}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	_, err = f.svc.Submit(ctx, inv.Token, &model.SubmitOnboardingRequest{Answers: map[string]interface{}{"goal": "x", "pain": 3}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest), "new accounts need a password")

	f.now = f.now.Add(InviteTTL + time.Minute)
	_, err = f.svc.Submit(ctx, inv.Token, &model.SubmitOnboardingRequest{Password: "s3cret-pass", Answers: map[string]interface{}{"goal": "x", "pain": 3}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	pub, err := f.svc.GetInvite(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InviteExpired, pub.Status)
	assert.Nil(t, pub.Template)
}
