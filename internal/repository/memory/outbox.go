package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type outboxRepository struct {
	db *DB
}

func (r *outboxRepository) Create(_ context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = now()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending
	r.db.outbox[event.ID] = clone(event)
	return nil
}

func (r *outboxRepository) ClaimPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t := now()
	var due []*model.OutboxEvent
	for _, e := range r.db.outbox {
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(t) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	due = page(due, limit, 0)

	out := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = t
		out = append(out, clone(e))
	}
	return out, nil
}

func (r *outboxRepository) update(id uuid.UUID, fn func(e *model.OutboxEvent)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(e)
	e.UpdatedAt = now()
	return nil
}

func (r *outboxRepository) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		t := now()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &t
		e.ErrorMessage = nil
	})
}

func (r *outboxRepository) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusRetry
		e.ErrorMessage = &errMsg
		e.RetryAt = &retryAt
		e.RetryCount++
	})
}

func (r *outboxRepository) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.RetryCount++
	})
}

func (r *outboxRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for id, e := range r.db.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.db.outbox, id)
			n++
		}
	}
	return n, nil
}

// Events returns a snapshot of every stored event, oldest first.
func (r *outboxRepository) Events() []*model.OutboxEvent {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]*model.OutboxEvent, 0, len(r.db.outbox))
	for _, e := range r.db.outbox {
		out = append(out, clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
