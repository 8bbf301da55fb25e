package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const (
	templateColumns = `id, doctor_id, name, description, is_default, steps, created_at, updated_at`
	inviteColumns   = `id, doctor_id, template_id, email, first_name, last_name, token, status,
		expires_at, completed_at, patient_id, created_at, updated_at`
	responseColumns = `id, invite_id, template_id, doctor_id, patient_id, answers, created_at, updated_at`
)

type onboardingRepository struct {
	BaseRepository
}

func NewOnboardingRepository(base BaseRepository) repository.OnboardingRepository {
	return &onboardingRepository{base}
}

func clearDefaultTemplates(ctx context.Context, tx *sqlx.Tx, doctorID, keepID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE onboarding_templates SET is_default = FALSE, updated_at = NOW()
		WHERE doctor_id = $1 AND id <> $2 AND is_default`, doctorID, keepID)
	return mapError("clear default templates", err)
}

func (r *onboardingRepository) CreateTemplate(ctx context.Context, t *model.OnboardingTemplate) error {
	t.Touch(now())
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if t.IsDefault {
			if err := clearDefaultTemplates(ctx, tx, t.DoctorID, t.ID); err != nil {
				return err
			}
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO onboarding_templates (`+templateColumns+`) VALUES (
				:id, :doctor_id, :name, :description, :is_default, :steps, :created_at, :updated_at)`, t)
		return mapError("create onboarding template", err)
	})
}

func (r *onboardingRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*model.OnboardingTemplate, error) {
	var t model.OnboardingTemplate
	if err := r.db.GetContext(ctx, &t, `SELECT `+templateColumns+` FROM onboarding_templates WHERE id = $1`, id); err != nil {
		return nil, mapError("get onboarding template", err)
	}
	return &t, nil
}

func (r *onboardingRepository) UpdateTemplate(ctx context.Context, t *model.OnboardingTemplate) error {
	t.Touch(now())
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if t.IsDefault {
			if err := clearDefaultTemplates(ctx, tx, t.DoctorID, t.ID); err != nil {
				return err
			}
		}
		res, err := tx.NamedExecContext(ctx, `
			UPDATE onboarding_templates SET
				name = :name, description = :description, is_default = :is_default,
				steps = :steps, updated_at = :updated_at
			WHERE id = :id`, t)
		if err != nil {
			return mapError("update onboarding template", err)
		}
		return expectRows("update onboarding template", res)
	})
}

func (r *onboardingRepository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM onboarding_templates WHERE id = $1`, id)
	if err != nil {
		return mapError("delete onboarding template", err)
	}
	return expectRows("delete onboarding template", res)
}

func (r *onboardingRepository) ListTemplates(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingTemplate, error) {
	var out []*model.OnboardingTemplate
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+templateColumns+` FROM onboarding_templates
		WHERE doctor_id = $1 ORDER BY is_default DESC, name`, doctorID)
	if err != nil {
		return nil, mapError("list onboarding templates", err)
	}
	return out, nil
}

func (r *onboardingRepository) GetDefaultTemplate(ctx context.Context, doctorID uuid.UUID) (*model.OnboardingTemplate, error) {
	var t model.OnboardingTemplate
	err := r.db.GetContext(ctx, &t, `
		SELECT `+templateColumns+` FROM onboarding_templates
		WHERE doctor_id = $1 AND is_default`, doctorID)
	if err != nil {
		return nil, mapError("get default onboarding template", err)
	}
	return &t, nil
}

func (r *onboardingRepository) CreateInvite(ctx context.Context, inv *model.OnboardingInvite) error {
	inv.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO onboarding_invites (`+inviteColumns+`) VALUES (
			:id, :doctor_id, :template_id, :email, :first_name, :last_name, :token, :status,
			:expires_at, :completed_at, :patient_id, :created_at, :updated_at)`, inv)
	return mapError("create onboarding invite", err)
}

func (r *onboardingRepository) GetInviteByToken(ctx context.Context, token string) (*model.OnboardingInvite, error) {
	var inv model.OnboardingInvite
	if err := r.db.GetContext(ctx, &inv, `SELECT `+inviteColumns+` FROM onboarding_invites WHERE token = $1`, token); err != nil {
		return nil, mapError("get onboarding invite", err)
	}
	return &inv, nil
}

func (r *onboardingRepository) UpdateInvite(ctx context.Context, inv *model.OnboardingInvite) error {
	inv.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE onboarding_invites SET
			status = :status, completed_at = :completed_at, patient_id = :patient_id,
			updated_at = :updated_at
		WHERE id = :id`, inv)
	if err != nil {
		return mapError("update onboarding invite", err)
	}
	return expectRows("update onboarding invite", res)
}

func (r *onboardingRepository) ListInvites(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingInvite, error) {
	var out []*model.OnboardingInvite
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+inviteColumns+` FROM onboarding_invites
		WHERE doctor_id = $1 ORDER BY created_at DESC`, doctorID)
	if err != nil {
		return nil, mapError("list onboarding invites", err)
	}
	return out, nil
}

func (r *onboardingRepository) CreateResponse(ctx context.Context, resp *model.OnboardingResponse) error {
	resp.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO onboarding_responses (`+responseColumns+`) VALUES (
			:id, :invite_id, :template_id, :doctor_id, :patient_id, :answers, :created_at, :updated_at)`, resp)
	return mapError("create onboarding response", err)
}

func (r *onboardingRepository) GetResponse(ctx context.Context, id uuid.UUID) (*model.OnboardingResponse, error) {
	var resp model.OnboardingResponse
	if err := r.db.GetContext(ctx, &resp, `SELECT `+responseColumns+` FROM onboarding_responses WHERE id = $1`, id); err != nil {
		return nil, mapError("get onboarding response", err)
	}
	return &resp, nil
}

func (r *onboardingRepository) ListResponses(ctx context.Context, doctorID uuid.UUID) ([]*model.OnboardingResponse, error) {
	var out []*model.OnboardingResponse
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+responseColumns+` FROM onboarding_responses
		WHERE doctor_id = $1 ORDER BY created_at DESC`, doctorID)
	if err != nil {
		return nil, mapError("list onboarding responses", err)
	}
	return out, nil
}
