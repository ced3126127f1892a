package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/MetricsFox/internal/pkg/middleware"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Tag every request before any route runs
	app.Use(middleware.RequestID)

	h.registerPublicRoutes(app)
	h.registerInternalRoutes(app)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
