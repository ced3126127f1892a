package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/statistics"
)

// ============================================================================
// METRICS CONTROLLER - JSON API
// ============================================================================

// DashboardService is what the metrics endpoints need from statistics.Service
type DashboardService interface {
	Dashboard(ctx context.Context, rng *models.DateRange) (*models.DashboardData, error)
	TakeRates(ctx context.Context) (models.TakeRateData, error)
	ClearCache()
}

// Envelope is the JSON shape of every API response
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details string      `json:"details,omitempty"`
}

// MetricsController handles the metrics API
type MetricsController struct {
	service DashboardService
}

// NewMetricsController creates a new metrics controller
func NewMetricsController(service DashboardService) *MetricsController {
	return &MetricsController{service: service}
}

// HandleGetMetrics serves GET /api/metrics?start_date&end_date
func (mc *MetricsController) HandleGetMetrics(c *fiber.Ctx) error {
	rng, err := statistics.ParseDateRange(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Envelope{
			Success: false,
			Error:   "Invalid date range",
			Details: err.Error(),
		})
	}
	return mc.RespondMetrics(c, rng)
}

// RespondMetrics writes the metrics envelope for an already parsed range
func (mc *MetricsController) RespondMetrics(c *fiber.Ctx, rng *models.DateRange) error {
	data, err := mc.service.Dashboard(c.UserContext(), rng)
	if err != nil {
		log.Error().Err(err).Msg("failed to build metrics")
		return c.Status(fiber.StatusInternalServerError).JSON(Envelope{
			Success: false,
			Error:   "Failed to fetch metrics data",
			Details: errorDetails(err),
		})
	}
	return c.JSON(Envelope{Success: true, Data: data})
}

// HandleDeleteMetrics serves DELETE /api/metrics
func (mc *MetricsController) HandleDeleteMetrics(c *fiber.Ctx) error {
	mc.service.ClearCache()
	return c.JSON(Envelope{Success: true, Message: "Cache cleared"})
}

// HandleGetTakeRates serves GET /api/take-rates
func (mc *MetricsController) HandleGetTakeRates(c *fiber.Ctx) error {
	data, err := mc.service.TakeRates(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("failed to load take rates")
		return c.Status(fiber.StatusInternalServerError).JSON(Envelope{
			Success: false,
			Error:   "Failed to fetch take rate data",
			Details: errorDetails(err),
		})
	}
	return c.JSON(Envelope{Success: true, Data: data})
}

func errorDetails(err error) string {
	switch {
	case err == nil:
		return "Unknown error"
	case errors.Is(err, context.DeadlineExceeded):
		return "billing provider did not answer in time"
	default:
		return err.Error()
	}
}
