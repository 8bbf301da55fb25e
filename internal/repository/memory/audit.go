package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
)

type auditRepository struct {
	db *DB
}

func (r *auditRepository) Create(_ context.Context, log *model.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now()
	}
	r.db.audit = append(r.db.audit, clone(log))
	return nil
}

func (r *auditRepository) filter(filters *model.AuditFilters) []*model.AuditLog {
	var out []*model.AuditLog
	for i := len(r.db.audit) - 1; i >= 0; i-- {
		l := r.db.audit[i]
		if filters.UserID != nil && (l.UserID == nil || *l.UserID != *filters.UserID) {
			continue
		}
		if filters.EntityType != "" && l.EntityType != filters.EntityType {
			continue
		}
		if filters.Action != "" && l.Action != filters.Action {
			continue
		}
		if !filters.From.IsZero() && l.CreatedAt.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && l.CreatedAt.After(filters.To) {
			continue
		}
		out = append(out, clone(l))
	}
	return out
}

func (r *auditRepository) List(_ context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	logs := r.filter(filters)
	return page(logs, filters.Limit, filters.Offset), int64(len(logs)), nil
}

func (r *auditRepository) Stats(_ context.Context, filters *model.AuditFilters) (*model.AuditStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	stats := &model.AuditStats{
		ActionCounts: make(map[string]int),
		EntityCounts: make(map[string]int),
	}
	for _, l := range r.filter(filters) {
		stats.TotalLogs++
		stats.ActionCounts[l.Action]++
		stats.EntityCounts[l.EntityType]++
	}
	return stats, nil
}

func (r *auditRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	kept := r.db.audit[:0]
	var n int64
	for _, l := range r.db.audit {
		if l.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.db.audit = kept
	return n, nil
}
