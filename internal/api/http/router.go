package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/portal-auth/internal/api/http/handlers"
	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Me             *handlers.MeHandler
	Admin          *handlers.AdminHandler
	Tenant         *handlers.TenantHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	LoginLimiter   fiber.Handler
}

// RegisterRoutes wires HTTP routes. Every request, matched or not, passes the
// auth gate first; the policy matrix decides which paths are public.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.AuthMiddleware.Handle)

	limiter := cfg.LoginLimiter
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	customerAuth := app.Group("/api/auth")
	customerAuth.Post("/login", limiter, cfg.Auth.CustomerLogin)
	customerAuth.Post("/logout", cfg.Auth.CustomerLogout)

	supportAuth := app.Group("/support/api/auth")
	supportAuth.Post("/login", limiter, cfg.Auth.SupportLogin)
	supportAuth.Post("/logout", cfg.Auth.SupportLogout)

	app.Get("/api/me", cfg.Me.Customer)
	app.Get("/support/api/me", cfg.Me.Support)

	admin := app.Group("/support/api/admin")
	admin.Get("/users", cfg.Admin.ListSupportUsers)
	admin.Post("/users", auth.RequireRole(domain.DomainSupport, string(domain.SupportRoleAdmin)), cfg.Admin.CreateSupportUser)

	tenant := app.Group("/api")
	for _, resource := range handlers.TenantResources {
		tenant.Get("/"+resource, cfg.Tenant.Resource(resource))
	}
}
