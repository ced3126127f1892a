package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/MetricsFox/app/controllers"
)

// Router installs a group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the collaborators built by the composition root
type Dependencies struct {
	Service        controllers.DashboardService
	Snapshots      controllers.SnapshotPeeker
	HealthChecks   map[string]controllers.HealthCheck
	LimiterStorage fiber.Storage
	RateLimit      int
	AdminAPIKey    string
	MonitorUser    string
	MonitorPass    string
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
