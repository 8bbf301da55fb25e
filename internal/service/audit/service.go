package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

type clientKey struct{}

// Client identifies the caller behind a request.
type Client struct {
	IPAddress string
	UserAgent string
}

// WithClient stores the caller's address and user agent for later audit entries.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, Client{IPAddress: ip, UserAgent: userAgent})
}

func clientFrom(ctx context.Context) Client {
	if c, ok := ctx.Value(clientKey{}).(Client); ok {
		return c
	}
	if gc, ok := ctx.(*gin.Context); ok {
		return Client{IPAddress: gc.ClientIP(), UserAgent: gc.GetHeader("User-Agent")}
	}
	return Client{}
}

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Log creates an audit log entry
func (s *Service) Log(ctx context.Context, userID *uuid.UUID, action, entityType string, entityID *uuid.UUID, changes map[string]interface{}) error {
	client := clientFrom(ctx)
	entry := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Record is Log for callers that must not fail when auditing does.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, action, entityType string, entityID uuid.UUID, changes map[string]interface{}) {
	if err := s.Log(ctx, &userID, action, entityType, &entityID, changes); err != nil {
		log.Error().Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Msg("audit entry dropped")
	}
}

func (s *Service) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Stats(ctx context.Context, filters *model.AuditFilters) (*model.AuditStats, error) {
	return s.repo.Stats(ctx, filters)
}

// Cleanup removes entries older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteBefore(ctx, time.Now().UTC().Add(-retention))
}
