package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const appointmentColumns = `id, doctor_id, patient_id, clinic_id, starts_at, ends_at, status, notes,
	cancel_reason, reminder_sent, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	appointment.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`) VALUES (
			:id, :doctor_id, :patient_id, :clinic_id, :starts_at, :ends_at, :status, :notes,
			:cancel_reason, :reminder_sent, :created_at, :updated_at)`, appointment)
	return mapError("create appointment", err)
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.GetContext(ctx, &a, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id); err != nil {
		return nil, mapError("get appointment", err)
	}
	return &a, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	appointment.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE appointments SET
			starts_at = :starts_at, ends_at = :ends_at, status = :status, notes = :notes,
			cancel_reason = :cancel_reason, reminder_sent = :reminder_sent, updated_at = :updated_at
		WHERE id = :id`, appointment)
	if err != nil {
		return mapError("update appointment", err)
	}
	return expectRows("update appointment", res)
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	where := []string{"1=1"}
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filters.DoctorID != nil {
		add("doctor_id = $%d", *filters.DoctorID)
	}
	if filters.PatientID != nil {
		add("patient_id = $%d", *filters.PatientID)
	}
	if filters.Status != "" {
		add("status = $%d", filters.Status)
	}
	if !filters.From.IsZero() {
		add("ends_at > $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("starts_at < $%d", filters.To)
	}

	var out []*model.Appointment
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE ` + strings.Join(where, " AND ") + ` ORDER BY starts_at`
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, mapError("list appointments", err)
	}
	return out, nil
}

func (r *appointmentRepository) CheckConflicts(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND status = 'scheduled'
			AND starts_at < $3 AND ends_at > $2`
	args := []interface{}{doctorID, start, end}
	if excludeID != nil {
		args = append(args, *excludeID)
		query += " AND id <> $4"
	}
	query += ")"

	var conflict bool
	if err := r.db.GetContext(ctx, &conflict, query, args...); err != nil {
		return false, mapError("check appointment conflicts", err)
	}
	return conflict, nil
}

func (r *appointmentRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Appointment, error) {
	var out []*model.Appointment
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE status = 'scheduled' AND NOT reminder_sent
		AND starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at`, from, to)
	if err != nil {
		return nil, mapError("list due reminders", err)
	}
	return out, nil
}
