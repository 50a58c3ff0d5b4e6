package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-auth/internal/domain"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// RequireRole ensures the attached identity belongs to d and, when roles are
// given, holds one of them.
func RequireRole(d domain.Domain, roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if identity.Domain != d {
			return apperrors.NewForbidden("access denied")
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		if _, ok := allowed[identity.Role]; !ok {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
