package handlers

import (
	"errors"

	"github.com/spec-kit/portal-auth/internal/api/dto"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/repository"
	"github.com/spec-kit/portal-auth/internal/service"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// mapServiceError translates service and repository sentinels into
// transport errors. Anything unrecognised becomes a 500.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid credentials")
	case errors.Is(err, service.ErrInvalidInput):
		return apperrors.NewValidationError("invalid input", nil)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewConflict("email already registered", nil)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("identity", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}

func customerResponse(c *domain.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		Name:           c.Name,
		Email:          c.Email,
		Role:           string(c.Role),
	}
}

func supportUserResponse(u *domain.SupportUser) dto.SupportUserResponse {
	return dto.SupportUserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}
