package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const clinicColumns = `id, owner_id, name, slug, description, phone, address, logo_url, created_at, updated_at`

type clinicRepository struct {
	BaseRepository
}

func NewClinicRepository(base BaseRepository) repository.ClinicRepository {
	return &clinicRepository{base}
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	clinic.Touch(now())
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO clinics (`+clinicColumns+`) VALUES (
				:id, :owner_id, :name, :slug, :description, :phone, :address, :logo_url,
				:created_at, :updated_at)`, clinic)
		if err != nil {
			return mapError("create clinic", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO clinic_members (clinic_id, user_id, role, created_at)
			VALUES ($1, $2, $3, $4)`,
			clinic.ID, clinic.OwnerID, model.ClinicRoleOwner, clinic.CreatedAt)
		return mapError("add clinic owner", err)
	})
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, `SELECT `+clinicColumns+` FROM clinics WHERE id = $1`, id); err != nil {
		return nil, mapError("get clinic", err)
	}
	return &clinic, nil
}

func (r *clinicRepository) GetBySlug(ctx context.Context, slug string) (*model.Clinic, error) {
	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, `SELECT `+clinicColumns+` FROM clinics WHERE slug = $1`, slug); err != nil {
		return nil, mapError("get clinic by slug", err)
	}
	return &clinic, nil
}

func (r *clinicRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM clinics WHERE slug = $1 AND id <> $2)`, slug, excludeID)
	if err != nil {
		return false, mapError("check clinic slug", err)
	}
	return exists, nil
}

func (r *clinicRepository) Update(ctx context.Context, clinic *model.Clinic) error {
	clinic.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE clinics SET
			name = :name, slug = :slug, description = :description, phone = :phone,
			address = :address, logo_url = :logo_url, updated_at = :updated_at
		WHERE id = :id`, clinic)
	if err != nil {
		return mapError("update clinic", err)
	}
	return expectRows("update clinic", res)
}

func (r *clinicRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clinics WHERE id = $1`, id)
	if err != nil {
		return mapError("delete clinic", err)
	}
	return expectRows("delete clinic", res)
}

func (r *clinicRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*model.Clinic, error) {
	var clinics []*model.Clinic
	err := r.db.SelectContext(ctx, &clinics, `
		SELECT c.id, c.owner_id, c.name, c.slug, c.description, c.phone, c.address, c.logo_url,
			c.created_at, c.updated_at
		FROM clinics c
		JOIN clinic_members m ON m.clinic_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.name`, userID)
	if err != nil {
		return nil, mapError("list clinics", err)
	}
	return clinics, nil
}

func (r *clinicRepository) AddMember(ctx context.Context, member *model.ClinicMember) error {
	member.CreatedAt = now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clinic_members (clinic_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)`,
		member.ClinicID, member.UserID, member.Role, member.CreatedAt)
	return mapError("add clinic member", err)
}

func (r *clinicRepository) GetMember(ctx context.Context, clinicID, userID uuid.UUID) (*model.ClinicMember, error) {
	var member model.ClinicMember
	err := r.db.GetContext(ctx, &member, `
		SELECT clinic_id, user_id, role, created_at FROM clinic_members
		WHERE clinic_id = $1 AND user_id = $2`, clinicID, userID)
	if err != nil {
		return nil, mapError("get clinic member", err)
	}
	return &member, nil
}

func (r *clinicRepository) RemoveMember(ctx context.Context, clinicID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM clinic_members WHERE clinic_id = $1 AND user_id = $2`, clinicID, userID)
	if err != nil {
		return mapError("remove clinic member", err)
	}
	return expectRows("remove clinic member", res)
}

func (r *clinicRepository) ListMembers(ctx context.Context, clinicID uuid.UUID) ([]*model.ClinicMember, error) {
	var members []*model.ClinicMember
	err := r.db.SelectContext(ctx, &members, `
		SELECT m.clinic_id, m.user_id, m.role, m.created_at, u.first_name, u.last_name, u.email
		FROM clinic_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.clinic_id = $1
		ORDER BY m.created_at`, clinicID)
	if err != nil {
		return nil, mapError("list clinic members", err)
	}
	return members, nil
}

func (r *clinicRepository) CountMembers(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM clinic_members WHERE clinic_id = $1`, clinicID); err != nil {
		return 0, mapError("count clinic members", err)
	}
	return n, nil
}
