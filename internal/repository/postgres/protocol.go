package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const protocolColumns = `id, doctor_id, clinic_id, title, description, is_template, days, created_at, updated_at`

type protocolRepository struct {
	BaseRepository
}

func NewProtocolRepository(base BaseRepository) repository.ProtocolRepository {
	return &protocolRepository{base}
}

func (r *protocolRepository) Create(ctx context.Context, p *model.Protocol) error {
	p.Touch(now())
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO protocols (`+protocolColumns+`) VALUES (
			:id, :doctor_id, :clinic_id, :title, :description, :is_template, :days,
			:created_at, :updated_at)`, p)
	return mapError("create protocol", err)
}

func (r *protocolRepository) Get(ctx context.Context, id uuid.UUID) (*model.Protocol, error) {
	var p model.Protocol
	if err := r.db.GetContext(ctx, &p, `SELECT `+protocolColumns+` FROM protocols WHERE id = $1`, id); err != nil {
		return nil, mapError("get protocol", err)
	}
	return &p, nil
}

func (r *protocolRepository) Update(ctx context.Context, p *model.Protocol) error {
	p.Touch(now())
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE protocols SET
			clinic_id = :clinic_id, title = :title, description = :description,
			is_template = :is_template, days = :days, updated_at = :updated_at
		WHERE id = :id`, p)
	if err != nil {
		return mapError("update protocol", err)
	}
	return expectRows("update protocol", res)
}

func (r *protocolRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM protocols WHERE id = $1`, id)
	if err != nil {
		return mapError("delete protocol", err)
	}
	return expectRows("delete protocol", res)
}

func (r *protocolRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, opts model.ListOptions) ([]*model.Protocol, error) {
	query := `SELECT ` + protocolColumns + ` FROM protocols WHERE doctor_id = $1`
	args := []interface{}{doctorID}
	if opts.Search != "" {
		args = append(args, likePattern(opts.Search))
		query += fmt.Sprintf(" AND title ILIKE $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit, opts.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var protocols []*model.Protocol
	if err := r.db.SelectContext(ctx, &protocols, query, args...); err != nil {
		return nil, mapError("list protocols", err)
	}
	return protocols, nil
}

func (r *protocolRepository) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM protocols WHERE doctor_id = $1`, doctorID); err != nil {
		return 0, mapError("count protocols", err)
	}
	return n, nil
}
