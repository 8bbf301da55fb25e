package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const habitColumns = `id, patient_id, created_by, name, description, frequency, target_per_period,
	archived, created_at, updated_at`

type habitRepository struct {
	BaseRepository
}

func NewHabitRepository(base BaseRepository) repository.HabitRepository {
	return &habitRepository{base}
}

func (r *habitRepository) Create(ctx context.Context, h *model.Habit) error {
	h.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`) VALUES (
			:id, :patient_id, :created_by, :name, :description, :frequency, :target_per_period,
			:archived, :created_at, :updated_at)`, h)
	return mapError("create habit", err)
}

func (r *habitRepository) Get(ctx context.Context, id uuid.UUID) (*model.Habit, error) {
	var h model.Habit
	if err := r.db.GetContext(ctx, &h, `SELECT `+habitColumns+` FROM habits WHERE id = $1`, id); err != nil {
		return nil, mapError("get habit", err)
	}
	return &h, nil
}

func (r *habitRepository) Update(ctx context.Context, h *model.Habit) error {
	h.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE habits SET
			name = :name, description = :description, frequency = :frequency,
			target_per_period = :target_per_period, archived = :archived, updated_at = :updated_at
		WHERE id = :id`, h)
	if err != nil {
		return mapError("update habit", err)
	}
	return expectRows("update habit", res)
}

func (r *habitRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, includeArchived bool) ([]*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE patient_id = $1`
	if !includeArchived {
		query += ` AND NOT archived`
	}
	query += ` ORDER BY created_at`

	var out []*model.Habit
	if err := r.db.SelectContext(ctx, &out, query, patientID); err != nil {
		return nil, mapError("list habits", err)
	}
	return out, nil
}

func (r *habitRepository) AddCheckIn(ctx context.Context, c *model.HabitCheckIn) (bool, error) {
	c.CreatedAt = now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO habit_check_ins (habit_id, date, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (habit_id, date) DO NOTHING`, c.HabitID, c.Date, c.CreatedAt)
	if err != nil {
		return false, mapError("check in habit", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError("check in habit", err)
	}
	return n > 0, nil
}

func (r *habitRepository) RemoveCheckIn(ctx context.Context, habitID uuid.UUID, date time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM habit_check_ins WHERE habit_id = $1 AND date = $2`, habitID, date)
	if err != nil {
		return false, mapError("undo habit check-in", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError("undo habit check-in", err)
	}
	return n > 0, nil
}

func (r *habitRepository) ListCheckIns(ctx context.Context, habitID uuid.UUID, from, to time.Time) ([]*model.HabitCheckIn, error) {
	var out []*model.HabitCheckIn
	err := r.db.SelectContext(ctx, &out, `
		SELECT habit_id, date, created_at FROM habit_check_ins
		WHERE habit_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`, habitID, from, to)
	if err != nil {
		return nil, mapError("list habit check-ins", err)
	}
	return out, nil
}
