package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

// claims older than this are considered abandoned by a crashed worker
const staleClaimAfter = 5 * time.Minute

const outboxColumns = `id, event_type, payload, status, error_message, retry_count, retry_at,
	created_at, processed_at, updated_at`

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = now()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.EventType, []byte(event.Payload), event.Status, event.CreatedAt, event.UpdatedAt)
	return mapError("create outbox event", err)
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := r.db.SelectContext(ctx, &events, `
		UPDATE outbox_events SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE (status IN ('pending', 'retry') AND (retry_at IS NULL OR retry_at <= NOW()))
			   OR (status = 'processing' AND updated_at < $2)
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		RETURNING `+outboxColumns, limit, now().Add(-staleClaimAfter))
	if err != nil {
		return nil, mapError("claim outbox events", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'processed', processed_at = NOW(), error_message = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	return mapError("mark outbox event processed", err)
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'retry', error_message = $2, retry_at = $3, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1`, id, errMsg, retryAt)
	return mapError("schedule outbox retry", err)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'failed', error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1`, id, errMsg)
	return mapError("mark outbox event failed", err)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = 'processed' AND processed_at < $1`, before)
	if err != nil {
		return 0, mapError("purge outbox events", err)
	}
	return res.RowsAffected()
}
