package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-auth/internal/api/dto"
	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/domain"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// TenantResources lists the customer portal mounts served behind the gate.
var TenantResources = []string{"customers", "jobs", "quotes", "invoices", "members", "equipment"}

// TenantHandler answers tenant resource mounts with the organization scope
// the business layer would query under.
type TenantHandler struct{}

// NewTenantHandler constructs handler.
func NewTenantHandler() *TenantHandler {
	return &TenantHandler{}
}

// Resource returns a handler for GET /api/<resource>.
func (h *TenantHandler) Resource(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := auth.IdentityFromContext(c)
		if !ok || identity.Domain != domain.DomainCustomer {
			return apperrors.NewUnauthorized("authentication required")
		}
		if identity.OrganizationID == "" {
			return apperrors.NewForbidden("no organization scope")
		}
		return c.JSON(fiber.Map{
			"data": dto.IdentityScope{
				Resource:       name,
				OrganizationID: identity.OrganizationID,
				IdentityID:     identity.IdentityID,
				Role:           identity.Role,
			},
			"items": []any{},
		})
	}
}
