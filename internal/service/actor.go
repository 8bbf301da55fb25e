package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool   { return a.Role == model.RoleAdmin }
func (a Actor) IsDoctor() bool  { return a.Role == model.RoleDoctor }
func (a Actor) IsPatient() bool { return a.Role == model.RolePatient }

// LimitChecker enforces subscription plan limits.
type LimitChecker interface {
	CheckLimit(ctx context.Context, doctorID uuid.UUID, resource string) error
	CheckCapacity(ctx context.Context, doctorID uuid.UUID, resource string, current int) error
}
