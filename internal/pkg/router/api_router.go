package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/ManuelReschke/MetricsFox/internal/api/v1"

	"github.com/ManuelReschke/MetricsFox/app/controllers"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/constants"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/middleware"
)

const defaultRateLimit = 60

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limit := h.deps.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        limit,
		Expiration: time.Minute,
		Storage:    h.deps.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(controllers.Envelope{
				Success: false,
				Error:   "Too many requests",
			})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	metrics := controllers.NewMetricsController(h.deps.Service)
	adminOnly := middleware.APIKeyAuthMiddleware(h.deps.AdminAPIKey)

	api.Get(constants.MetricsPath, metrics.HandleGetMetrics)
	api.Delete(constants.MetricsPath, adminOnly, metrics.HandleDeleteMetrics)
	api.Get(constants.TakeRatesPath, metrics.HandleGetTakeRates)

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(metrics)
	apiv1.RegisterHandlersWithOptions(v1, apiServer, apiv1.FiberServerOptions{
		DeleteMetricsMiddleware: []fiber.Handler{adminOnly},
	})
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
