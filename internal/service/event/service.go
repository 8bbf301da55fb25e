package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

// Emitter appends domain events to the outbox.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
	Record(ctx context.Context, eventType string, payload interface{})
}

type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// Record emits the event after the primary write has committed; failures are logged only.
func (s *Service) Record(ctx context.Context, eventType string, payload interface{}) {
	if err := s.Emit(ctx, eventType, payload); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("event not recorded")
	}
}
