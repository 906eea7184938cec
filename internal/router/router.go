package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-ews-api/internal/config"
	"github.com/noah-isme/gema-ews-api/internal/handler"
	"github.com/noah-isme/gema-ews-api/internal/middleware"
	"github.com/noah-isme/gema-ews-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DashboardHandler  *handler.DashboardHandler
	StudentHandler    *handler.StudentHandler
	BriefHandler      *handler.BriefHandler
	ThresholdHandler  *handler.ThresholdHandler
	IngestHandler     *handler.IngestHandler
	PredictionHandler *handler.PredictionHandler
	AlertHandler      *handler.AlertHandler
	HealthProbes      []handler.HealthProbe
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staff := api.Group("", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin, middleware.RoleMentor))
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(staff.Group("/dashboard"))
	}

	students := staff.Group("/students")
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(students)
	}
	if deps.BriefHandler != nil {
		deps.BriefHandler.Register(students)
	}

	if deps.ThresholdHandler != nil {
		deps.ThresholdHandler.Register(staff.Group("/thresholds"), adminOnly)
	}

	if deps.AlertHandler != nil {
		deps.AlertHandler.Register(staff.Group("/alerts"))
	}

	// Bulk writes are admin only.
	if deps.IngestHandler != nil {
		ingest := staff.Group("/ingest", adminOnly, middleware.RateLimit("ingest", cfg.IngestRateLimit, time.Minute))
		deps.IngestHandler.Register(ingest)
	}

	if deps.PredictionHandler != nil {
		deps.PredictionHandler.Register(staff.Group("/predictions", adminOnly))
	}
}
