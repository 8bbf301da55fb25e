package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const relationshipColumns = `id, doctor_id, patient_id, is_primary, notes, created_at, updated_at`

type relationshipRepository struct {
	BaseRepository
}

func NewRelationshipRepository(base BaseRepository) repository.RelationshipRepository {
	return &relationshipRepository{base}
}

func (r *relationshipRepository) Get(ctx context.Context, id uuid.UUID) (*model.DoctorPatient, error) {
	var rel model.DoctorPatient
	if err := r.db.GetContext(ctx, &rel, `SELECT `+relationshipColumns+` FROM doctor_patients WHERE id = $1`, id); err != nil {
		return nil, mapError("get relationship", err)
	}
	return &rel, nil
}

func (r *relationshipRepository) Find(ctx context.Context, doctorID, patientID uuid.UUID) (*model.DoctorPatient, error) {
	var rel model.DoctorPatient
	err := r.db.GetContext(ctx, &rel, `
		SELECT `+relationshipColumns+` FROM doctor_patients
		WHERE doctor_id = $1 AND patient_id = $2`, doctorID, patientID)
	if err != nil {
		return nil, mapError("find relationship", err)
	}
	return &rel, nil
}

func clearPrimary(ctx context.Context, tx *sqlx.Tx, patientID, keepID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE doctor_patients SET is_primary = FALSE, updated_at = NOW()
		WHERE patient_id = $1 AND id <> $2 AND is_primary`, patientID, keepID)
	return mapError("clear primary relationships", err)
}

func (r *relationshipRepository) Create(ctx context.Context, rel *model.DoctorPatient) error {
	rel.Touch(now())
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if rel.IsPrimary {
			if err := clearPrimary(ctx, tx, rel.PatientID, rel.ID); err != nil {
				return err
			}
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO doctor_patients (`+relationshipColumns+`)
			VALUES (:id, :doctor_id, :patient_id, :is_primary, :notes, :created_at, :updated_at)`, rel)
		return mapError("create relationship", err)
	})
}

func (r *relationshipRepository) SetPrimary(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var patientID uuid.UUID
		err := tx.GetContext(ctx, &patientID,
			`SELECT patient_id FROM doctor_patients WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return mapError("lock relationship", err)
		}
		if err := clearPrimary(ctx, tx, patientID, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE doctor_patients SET is_primary = TRUE, updated_at = NOW() WHERE id = $1`, id)
		return mapError("set primary relationship", err)
	})
}

func (r *relationshipRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var rel model.DoctorPatient
		err := tx.GetContext(ctx, &rel,
			`DELETE FROM doctor_patients WHERE id = $1 RETURNING `+relationshipColumns, id)
		if err != nil {
			return mapError("delete relationship", err)
		}
		if !rel.IsPrimary {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE doctor_patients SET is_primary = TRUE, updated_at = NOW()
			WHERE id = (
				SELECT id FROM doctor_patients WHERE patient_id = $1
				ORDER BY created_at DESC LIMIT 1
			)`, rel.PatientID)
		return mapError("promote relationship", err)
	})
}

func (r *relationshipRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.DoctorPatient, error) {
	var rels []*model.DoctorPatient
	err := r.db.SelectContext(ctx, &rels, `
		SELECT `+relationshipColumns+` FROM doctor_patients
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, mapError("list patient relationships", err)
	}
	return rels, nil
}

func (r *relationshipRepository) ListPatients(ctx context.Context, doctorID uuid.UUID, opts model.ListOptions) ([]*model.LinkedUser, error) {
	query := `
		SELECT dp.id AS relationship_id, u.id AS user_id, u.email, u.first_name, u.last_name,
			u.status, dp.is_primary, dp.created_at AS linked_at
		FROM doctor_patients dp
		JOIN users u ON u.id = dp.patient_id
		WHERE dp.doctor_id = $1`
	args := []interface{}{doctorID}
	if opts.Search != "" {
		args = append(args, likePattern(opts.Search))
		query += fmt.Sprintf(" AND (u.email ILIKE $%d OR u.first_name ILIKE $%d OR u.last_name ILIKE $%d)", len(args), len(args), len(args))
	}
	query += " ORDER BY u.last_name, u.first_name"
	if opts.Limit > 0 {
		args = append(args, opts.Limit, opts.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var patients []*model.LinkedUser
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, mapError("list patients", err)
	}
	return patients, nil
}

func (r *relationshipRepository) ListDoctors(ctx context.Context, patientID uuid.UUID) ([]*model.LinkedUser, error) {
	var doctors []*model.LinkedUser
	err := r.db.SelectContext(ctx, &doctors, `
		SELECT dp.id AS relationship_id, u.id AS user_id, u.email, u.first_name, u.last_name,
			u.status, dp.is_primary, dp.created_at AS linked_at
		FROM doctor_patients dp
		JOIN users u ON u.id = dp.doctor_id
		WHERE dp.patient_id = $1
		ORDER BY dp.is_primary DESC, dp.created_at DESC`, patientID)
	if err != nil {
		return nil, mapError("list doctors", err)
	}
	return doctors, nil
}

func (r *relationshipRepository) CountPatients(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM doctor_patients WHERE doctor_id = $1`, doctorID); err != nil {
		return 0, mapError("count patients", err)
	}
	return n, nil
}
