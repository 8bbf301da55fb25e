// Package service holds helpers shared by the domain services.
package service

import (
	"errors"

	"github.com/jwalitptl/clinic-platform/internal/repository"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

// FromRepo translates repository sentinels into application errors.
func FromRepo(resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.Conflict(resource+" already exists", err)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Internal(err)
}
