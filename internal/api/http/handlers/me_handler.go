package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/service"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// MeHandler returns the caller behind the attached identity.
type MeHandler struct {
	auth *service.AuthService
}

// NewMeHandler constructs handler.
func NewMeHandler(authService *service.AuthService) *MeHandler {
	return &MeHandler{auth: authService}
}

// Customer handles GET /api/me.
func (h *MeHandler) Customer(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	customer, err := h.auth.CurrentCustomer(c.UserContext(), identity)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// Support handles GET /support/api/me.
func (h *MeHandler) Support(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := h.auth.CurrentSupportUser(c.UserContext(), identity)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": supportUserResponse(user)})
}
