package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-auth/internal/api/dto"
	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/service"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// AuthHandler exposes login and logout for both portals. Each endpoint only
// reads and writes the cookies of its own domain.
type AuthHandler struct {
	auth    *service.AuthService
	cookies *auth.CookieAdapter
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies *auth.CookieAdapter) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies}
}

// CustomerLogin handles POST /api/auth/login.
func (h *AuthHandler) CustomerLogin(c *fiber.Ctx) error {
	req, err := parseLogin(c)
	if err != nil {
		return err
	}

	res, err := h.auth.LoginCustomer(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	h.cookies.SetCustomerSession(c, res.Session.ID)

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"customer": customerResponse(res.Customer),
		},
	})
}

// CustomerLogout handles POST /api/auth/logout.
func (h *AuthHandler) CustomerLogout(c *fiber.Ctx) error {
	sid, _ := h.cookies.ReadCustomerSession(c)
	if err := h.auth.Logout(c.UserContext(), domain.DomainCustomer, sid); err != nil {
		return mapServiceError(err)
	}
	h.cookies.ClearCustomer(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// SupportLogin handles POST /support/api/auth/login.
func (h *AuthHandler) SupportLogin(c *fiber.Ctx) error {
	req, err := parseLogin(c)
	if err != nil {
		return err
	}

	res, err := h.auth.LoginSupport(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	h.cookies.SetSupportSession(c, res.Session.ID, res.Token, res.TokenExpiresAt)

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"support_user": supportUserResponse(res.User),
			"auth":         dto.SupportAuthResponse{ExpiresAt: res.TokenExpiresAt},
		},
	})
}

// SupportLogout handles POST /support/api/auth/logout. The token is stateless,
// so logout destroys the support session and expires both support cookies.
func (h *AuthHandler) SupportLogout(c *fiber.Ctx) error {
	sid, _ := h.cookies.ReadSupportSession(c)
	if err := h.auth.Logout(c.UserContext(), domain.DomainSupport, sid); err != nil {
		return mapServiceError(err)
	}
	h.cookies.ClearSupport(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func parseLogin(c *fiber.Ctx) (dto.LoginRequest, error) {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return req, apperrors.NewValidationError("email and password required", nil)
	}
	return req, nil
}
