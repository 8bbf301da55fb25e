package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/pkg/logger"
	"github.com/jwalitptl/clinic-platform/pkg/messaging"
	"github.com/jwalitptl/clinic-platform/pkg/metrics"
)

// maxBackoff caps the delay between publish attempts of one event.
const maxBackoff = time.Hour

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts is the number of publish attempts before an event is marked failed.
	RetryAttempts int
	// RetryDelay is the first backoff; it doubles on every further attempt.
	RetryDelay time.Duration
	// Retention is how long processed events are kept. Zero disables purging.
	Retention     time.Duration
	PurgeInterval time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	}
	return nil
}

// OutboxProcessor publishes pending outbox events to the broker.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}
	if config.PurgeInterval <= 0 {
		config.PurgeInterval = time.Hour
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger.WithFields(map[string]interface{}{"worker": "outbox"}),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start polls until ctx is cancelled. It always returns nil.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()
	purge := time.NewTicker(p.config.PurgeInterval)
	defer purge.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return nil
		case <-poll.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		case <-purge.C:
			if _, err := p.Purge(ctx); err != nil {
				p.logger.Error(err, "Failed to purge processed events")
			}
		}
	}
}

// ProcessBatch claims one batch of due events and publishes them. It
// returns the number published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "error").Inc()
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "success").Inc()

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_count", event.RetryCount)
			continue
		}
		published++
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := p.broker.Publish(ctx, messaging.EventsChannel, messaging.Message{
		ID:      event.ID.String(),
		Type:    event.EventType,
		Payload: event.Payload,
	})
	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
		return nil
	}

	errStr := err.Error()
	if event.RetryCount+1 >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if updateErr := p.repo.MarkFailed(ctx, event.ID, errStr); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.backoff(event.RetryCount))
	if updateErr := p.repo.MarkRetry(ctx, event.ID, errStr, retryAt); updateErr != nil {
		p.logger.Error(updateErr, "Failed to schedule event retry", "event_id", event.ID.String())
	}
	return err
}

// backoff is RetryDelay doubled per previous attempt, capped at maxBackoff.
func (p *OutboxProcessor) backoff(attempt int) time.Duration {
	d := p.config.RetryDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Purge deletes processed events older than the retention window.
func (p *OutboxProcessor) Purge(ctx context.Context) (int64, error) {
	if p.config.Retention <= 0 {
		return 0, nil
	}
	n, err := p.repo.DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("purge_events", "error").Inc()
		return 0, fmt.Errorf("failed to purge events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("purge_events", "success").Inc()
	p.metrics.OutboxPurged.Add(float64(n))
	if n > 0 {
		p.logger.Info("Purged processed events", "count", n)
	}
	return n, nil
}
