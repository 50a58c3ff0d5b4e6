package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-auth/internal/api/dto"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/repository"
	"github.com/spec-kit/portal-auth/internal/service"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// AdminHandler manages support operators.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authService}
}

// ListSupportUsers handles GET /support/api/admin/users.
func (h *AdminHandler) ListSupportUsers(c *fiber.Ctx) error {
	filter := repository.SupportUserFilter{}
	if role := c.Query("role"); role != "" {
		r := domain.SupportRole(role)
		if !r.Valid() {
			return apperrors.NewValidationError("invalid role", map[string]any{"role": role})
		}
		filter.Role = &r
	}
	if active := c.Query("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return apperrors.NewValidationError("invalid active flag", nil)
		}
		filter.Active = &v
	}
	filter.Limit = c.QueryInt("limit", 50)
	filter.Offset = c.QueryInt("offset", 0)

	users, err := h.auth.ListSupportUsers(c.UserContext(), filter)
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]dto.SupportUserResponse, 0, len(users))
	for i := range users {
		out = append(out, supportUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// CreateSupportUser handles POST /support/api/admin/users.
func (h *AdminHandler) CreateSupportUser(c *fiber.Ctx) error {
	var req dto.CreateSupportUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role := domain.SupportRole(req.Role)
	if req.Role == "" {
		role = domain.SupportRoleAgent
	}

	user, err := h.auth.CreateSupportUser(c.UserContext(), req.Name, req.Email, req.Password, role)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": supportUserResponse(user)})
}
