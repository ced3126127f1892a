package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/MetricsFox/app/controllers"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/constants"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// API routes live in ApiRouter (internal/pkg/router/api_router.go)
	dashboard := controllers.NewDashboardController(h.deps.Service)
	app.Get(constants.PublicRoute, dashboard.HandleIndex)

	health := controllers.NewHealthController(h.deps.Snapshots, h.deps.HealthChecks)
	app.Get(constants.HealthRoute, health.HandleHealthz)
}
