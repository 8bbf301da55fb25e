package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/repository"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

// EnsureLinked fails with Forbidden unless the doctor and patient have a relationship.
func EnsureLinked(ctx context.Context, relationships repository.RelationshipRepository, doctorID, patientID uuid.UUID) error {
	_, err := relationships.Find(ctx, doctorID, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Forbidden("patient is not linked to this doctor")
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}
