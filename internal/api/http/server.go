package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/observability"
)

// NewApp builds the fiber app with routing that treats path case strictly,
// so /API/... never slips past the policy matrix.
func NewApp(name string, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		CaseSensitive:         true,
		StrictRouting:         false,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger, metrics),
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	RegisterMiddlewares(app, logger, metrics, timeout)
	return app
}
