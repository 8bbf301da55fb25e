package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const prescriptionColumns = `id, doctor_id, patient_id, protocol_id, status, start_date, completed_at, notes, created_at, updated_at`

type prescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(base BaseRepository) repository.PrescriptionRepository {
	return &prescriptionRepository{base}
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	p.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO prescriptions (`+prescriptionColumns+`) VALUES (
			:id, :doctor_id, :patient_id, :protocol_id, :status, :start_date, :completed_at,
			:notes, :created_at, :updated_at)`, p)
	return mapError("create prescription", err)
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	var p model.Prescription
	if err := r.db.GetContext(ctx, &p, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id); err != nil {
		return nil, mapError("get prescription", err)
	}
	return &p, nil
}

func (r *prescriptionRepository) Update(ctx context.Context, p *model.Prescription) error {
	p.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE prescriptions SET
			status = :status, start_date = :start_date, completed_at = :completed_at,
			notes = :notes, updated_at = :updated_at
		WHERE id = :id`, p)
	if err != nil {
		return mapError("update prescription", err)
	}
	return expectRows("update prescription", res)
}

func (r *prescriptionRepository) List(ctx context.Context, filters *model.PrescriptionFilters) ([]*model.Prescription, error) {
	where := []string{"1=1"}
	var args []interface{}
	if filters.DoctorID != nil {
		args = append(args, *filters.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filters.PatientID != nil {
		args = append(args, *filters.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filters.ProtocolID != nil {
		args = append(args, *filters.ProtocolID)
		where = append(where, fmt.Sprintf("protocol_id = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	var out []*model.Prescription
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, mapError("list prescriptions", err)
	}
	return out, nil
}

func (r *prescriptionRepository) HasOpen(ctx context.Context, patientID, protocolID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM prescriptions
			WHERE patient_id = $1 AND protocol_id = $2 AND status IN ('active', 'paused')
		)`, patientID, protocolID)
	if err != nil {
		return false, mapError("check open prescription", err)
	}
	return exists, nil
}

func (r *prescriptionRepository) CountOpenForProtocol(ctx context.Context, protocolID uuid.UUID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM prescriptions
		WHERE protocol_id = $1 AND status IN ('active', 'paused')`, protocolID)
	if err != nil {
		return 0, mapError("count open prescriptions", err)
	}
	return n, nil
}

func (r *prescriptionRepository) AddCompletion(ctx context.Context, c *model.TaskCompletion) (bool, error) {
	if c.CompletedAt.IsZero() {
		c.CompletedAt = now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO task_completions (prescription_id, task_id, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (prescription_id, task_id) DO NOTHING`,
		c.PrescriptionID, c.TaskID, c.CompletedAt)
	if err != nil {
		return false, mapError("complete task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError("complete task", err)
	}
	return n > 0, nil
}

func (r *prescriptionRepository) RemoveCompletion(ctx context.Context, prescriptionID uuid.UUID, taskID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM task_completions WHERE prescription_id = $1 AND task_id = $2`, prescriptionID, taskID)
	if err != nil {
		return false, mapError("uncomplete task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError("uncomplete task", err)
	}
	return n > 0, nil
}

func (r *prescriptionRepository) Reopen(ctx context.Context, p *model.Prescription, taskID string) (bool, error) {
	removed := false
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM task_completions WHERE prescription_id = $1 AND task_id = $2`, p.ID, taskID)
		if err != nil {
			return mapError("uncomplete task", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return mapError("uncomplete task", err)
		}
		if n == 0 {
			return nil
		}

		p.Touch(now())
		res, err = tx.NamedExecContext(ctx, `
			UPDATE prescriptions SET
				status = :status, completed_at = :completed_at, updated_at = :updated_at
			WHERE id = :id`, p)
		if err != nil {
			return mapError("reopen prescription", err)
		}
		if err := expectRows("reopen prescription", res); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (r *prescriptionRepository) ListCompletions(ctx context.Context, prescriptionID uuid.UUID) ([]*model.TaskCompletion, error) {
	var out []*model.TaskCompletion
	err := r.db.SelectContext(ctx, &out, `
		SELECT prescription_id, task_id, completed_at FROM task_completions
		WHERE prescription_id = $1 ORDER BY completed_at`, prescriptionID)
	if err != nil {
		return nil, mapError("list task completions", err)
	}
	return out, nil
}
