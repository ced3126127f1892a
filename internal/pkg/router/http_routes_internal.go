package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/internal/pkg/constants"
)

func (h HttpRouter) registerInternalRoutes(app *fiber.App) {
	// prometheus scrape endpoint
	app.Get(constants.PrometheusRoute, adaptor.HTTPHandler(promhttp.Handler()))

	// fiber monitor, only with credentials
	if h.deps.MonitorUser == "" || h.deps.MonitorPass == "" {
		log.Info().Msg("MONITOR_USER/MONITOR_PASSWORD not set, monitor page disabled")
		return
	}
	app.Get(constants.MonitorRoute, basicauth.New(basicauth.Config{
		Users: map[string]string{
			h.deps.MonitorUser: h.deps.MonitorPass,
		},
	}), monitor.New(monitor.Config{Title: "MetricsFox Monitor"}))
}
