package apiv1

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MetricsFox/app/controllers"
	"github.com/ManuelReschke/MetricsFox/app/models"
)

type stubService struct {
	rng     *models.DateRange
	cleared bool
}

func (s *stubService) Dashboard(_ context.Context, rng *models.DateRange) (*models.DashboardData, error) {
	s.rng = rng
	return &models.DashboardData{SnapshotID: "snap"}, nil
}

func (s *stubService) TakeRates(context.Context) (models.TakeRateData, error) {
	return models.TakeRateData{TakeRate: 41.4}, nil
}

func (s *stubService) ClearCache() { s.cleared = true }

func newTestApp(svc *stubService, opts FiberServerOptions) *fiber.App {
	app := fiber.New()
	RegisterHandlersWithOptions(app.Group("/api/v1"), NewAPIServer(controllers.NewMetricsController(svc)), opts)
	return app
}

func TestGetPing(t *testing.T) {
	resp, err := newTestApp(&stubService{}, FiberServerOptions{}).Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/ping", nil))
	require.NoError(t, err)

	var pong Pong
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pong))
	assert.Equal(t, "pong", pong.Ping)
	assert.NotEmpty(t, pong.Version)
}

func TestGetMetrics_PassesRange(t *testing.T) {
	svc := &stubService{}
	resp, err := newTestApp(svc, FiberServerOptions{}).Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/metrics?end_date=2025-07-31", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.rng)
	assert.Nil(t, svc.rng.Start)
	assert.NotNil(t, svc.rng.End)

	resp, err = newTestApp(svc, FiberServerOptions{}).Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/metrics?start_date=2025-02-30", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeleteMetrics_Middleware(t *testing.T) {
	svc := &stubService{}
	deny := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusUnauthorized) }

	resp, err := newTestApp(svc, FiberServerOptions{DeleteMetricsMiddleware: []fiber.Handler{deny}}).Test(httptest.NewRequest(fiber.MethodDelete, "/api/v1/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.False(t, svc.cleared)

	resp, err = newTestApp(svc, FiberServerOptions{}).Test(httptest.NewRequest(fiber.MethodDelete, "/api/v1/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, svc.cleared)
}

func TestGetTakeRates(t *testing.T) {
	resp, err := newTestApp(&stubService{}, FiberServerOptions{}).Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/take-rates", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
