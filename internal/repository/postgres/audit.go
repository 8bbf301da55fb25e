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

const auditColumns = `id, user_id, action, entity_type, entity_id, changes, ip_address, user_agent, created_at`

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`) VALUES (
			:id, :user_id, :action, :entity_type, :entity_id, :changes, :ip_address, :user_agent, :created_at)`, log)
	return mapError("create audit log", err)
}

func auditWhere(filters *model.AuditFilters) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filters.UserID != nil {
		add("user_id = $%d", *filters.UserID)
	}
	if filters.EntityType != "" {
		add("entity_type = $%d", filters.EntityType)
	}
	if filters.Action != "" {
		add("action = $%d", filters.Action)
	}
	if !filters.From.IsZero() {
		add("created_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("created_at <= $%d", filters.To)
	}
	return strings.Join(conditions, " AND "), args
}

func (r *auditRepository) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error) {
	where, args := auditWhere(filters)

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs WHERE `+where, args...); err != nil {
		return nil, 0, mapError("count audit logs", err)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE ` + where + ` ORDER BY created_at DESC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var logs []*model.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, mapError("list audit logs", err)
	}
	return logs, total, nil
}

func (r *auditRepository) Stats(ctx context.Context, filters *model.AuditFilters) (*model.AuditStats, error) {
	where, args := auditWhere(filters)
	stats := &model.AuditStats{
		ActionCounts: make(map[string]int),
		EntityCounts: make(map[string]int),
	}

	type bucket struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}
	var actions []bucket
	if err := r.db.SelectContext(ctx, &actions, `SELECT action AS key, COUNT(*) AS count FROM audit_logs WHERE `+where+` GROUP BY action`, args...); err != nil {
		return nil, mapError("aggregate audit actions", err)
	}
	for _, b := range actions {
		stats.ActionCounts[b.Key] = b.Count
		stats.TotalLogs += int64(b.Count)
	}

	var entities []bucket
	if err := r.db.SelectContext(ctx, &entities, `SELECT entity_type AS key, COUNT(*) AS count FROM audit_logs WHERE `+where+` GROUP BY entity_type`, args...); err != nil {
		return nil, mapError("aggregate audit entities", err)
	}
	for _, b := range entities {
		stats.EntityCounts[b.Key] = b.Count
	}
	return stats, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, mapError("cleanup audit logs", err)
	}
	return res.RowsAffected()
}
