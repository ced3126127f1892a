package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/MetricsFox/internal/pkg/constants"
)

// Pong is the response of GET /ping
type Pong struct {
	Ping    string `json:"ping"`
	Version string `json:"version"`
}

// GetMetricsParams are the query parameters of GET /metrics
type GetMetricsParams struct {
	StartDate *string `query:"start_date"`
	EndDate   *string `query:"end_date"`
}

// ServerInterface lists the v1 operations described in public/docs/v1/openapi.yml
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /metrics)
	GetMetrics(c *fiber.Ctx, params GetMetricsParams) error
	// (DELETE /metrics)
	DeleteMetrics(c *fiber.Ctx) error
	// (GET /take-rates)
	GetTakeRates(c *fiber.Ctx) error
}

// ServerInterfaceWrapper converts fiber contexts to parameters
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (siw *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return siw.Handler.GetPing(c)
}

func (siw *ServerInterfaceWrapper) GetMetrics(c *fiber.Ctx) error {
	var params GetMetricsParams
	if v := c.Query("start_date"); v != "" {
		params.StartDate = &v
	}
	if v := c.Query("end_date"); v != "" {
		params.EndDate = &v
	}
	return siw.Handler.GetMetrics(c, params)
}

func (siw *ServerInterfaceWrapper) DeleteMetrics(c *fiber.Ctx) error {
	return siw.Handler.DeleteMetrics(c)
}

func (siw *ServerInterfaceWrapper) GetTakeRates(c *fiber.Ctx) error {
	return siw.Handler.GetTakeRates(c)
}

// FiberServerOptions lets callers attach middleware per operation
type FiberServerOptions struct {
	DeleteMetricsMiddleware []fiber.Handler
}

// RegisterHandlers creates http.Handler with routing matching the OpenAPI document.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	RegisterHandlersWithOptions(router, si, FiberServerOptions{})
}

// RegisterHandlersWithOptions creates http.Handler with additional options
func RegisterHandlersWithOptions(router fiber.Router, si ServerInterface, options FiberServerOptions) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}

	router.Get("/ping", wrapper.GetPing)
	router.Get(constants.MetricsPath, wrapper.GetMetrics)
	deleteHandlers := append(append([]fiber.Handler{}, options.DeleteMetricsMiddleware...), wrapper.DeleteMetrics)
	router.Delete(constants.MetricsPath, deleteHandlers...)
	router.Get(constants.TakeRatesPath, wrapper.GetTakeRates)
}
