package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/doorman/internal/api/http/handlers"
	"github.com/spec-kit/doorman/internal/auth"
)

// RouteConfig bundles dependencies for doorman route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires doorman's HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	registerHealth(app, cfg.Health)

	rest := app.Group("/rest")
	rest.Post("/register", cfg.Auth.Register)
	rest.Post("/login", cfg.Auth.Login)
	rest.Post("/validate", cfg.Auth.Validate)
	rest.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)
}

// GatewayRouteConfig bundles dependencies for manager route registration.
type GatewayRouteConfig struct {
	Health *handlers.HealthHandler
	// Pipeline runs the gateway filters around Upstream.
	Pipeline fiber.Handler
	Upstream fiber.Handler
}

// RegisterGatewayRoutes wires the manager: health probes plus a catch-all
// that runs every other request through the filter pipeline.
func RegisterGatewayRoutes(app *fiber.App, cfg GatewayRouteConfig) {
	registerHealth(app, cfg.Health)
	app.All("/*", cfg.Pipeline, cfg.Upstream)
}

func registerHealth(app *fiber.App, h *handlers.HealthHandler) {
	app.Get("/health/live", h.Live)
	app.Get("/health/ready", h.Ready)
}
