package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/MetricsFox/app/controllers"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/constants"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/statistics"
)

// APIServer implements the ServerInterface
type APIServer struct {
	metrics *controllers.MetricsController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(metrics *controllers.MetricsController) *APIServer {
	return &APIServer{metrics: metrics}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping:    "pong",
		Version: constants.Version,
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetMetrics returns the dashboard metrics for an optional date range.
func (s *APIServer) GetMetrics(c *fiber.Ctx, params GetMetricsParams) error {
	rng, err := statistics.ParseDateRange(deref(params.StartDate), deref(params.EndDate))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(controllers.Envelope{
			Success: false,
			Error:   "Invalid date range",
			Details: err.Error(),
		})
	}
	return s.metrics.RespondMetrics(c, rng)
}

// DeleteMetrics drops the cached snapshot.
func (s *APIServer) DeleteMetrics(c *fiber.Ctx) error {
	return s.metrics.HandleDeleteMetrics(c)
}

// GetTakeRates returns the take-rate history.
func (s *APIServer) GetTakeRates(c *fiber.Ctx) error {
	return s.metrics.HandleGetTakeRates(c)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
