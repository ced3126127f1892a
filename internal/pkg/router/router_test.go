package router

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MetricsFox/app/models"
)

type stubService struct{ cleared int }

func (s *stubService) Dashboard(context.Context, *models.DateRange) (*models.DashboardData, error) {
	return &models.DashboardData{SnapshotID: "snap"}, nil
}

func (s *stubService) TakeRates(context.Context) (models.TakeRateData, error) {
	return models.TakeRateData{}, nil
}

func (s *stubService) ClearCache() { s.cleared++ }

type stubSnapshots struct{}

func (stubSnapshots) Peek() *models.Snapshot { return nil }
func (stubSnapshots) TTL() time.Duration     { return time.Minute }

func newApp(svc *stubService, deps Dependencies) *fiber.App {
	app := fiber.New()
	deps.Service = svc
	deps.Snapshots = stubSnapshots{}
	InstallRouter(app, deps)
	return app
}

func TestRoutes(t *testing.T) {
	app := newApp(&stubService{}, Dependencies{MonitorUser: "admin", MonitorPass: "pw"})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{fiber.MethodGet, "/api/metrics", fiber.StatusOK},
		{fiber.MethodGet, "/api/v1/metrics", fiber.StatusOK},
		{fiber.MethodGet, "/api/take-rates", fiber.StatusOK},
		{fiber.MethodGet, "/api/v1/ping", fiber.StatusOK},
		{fiber.MethodGet, "/healthz", fiber.StatusOK},
		{fiber.MethodGet, "/internal/prometheus", fiber.StatusOK},
		{fiber.MethodGet, "/internal/monitor", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tt.want, resp.StatusCode, "%s %s", tt.method, tt.path)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	}
}

func TestDeleteMetricsRequiresAdminKey(t *testing.T) {
	svc := &stubService{}
	app := newApp(svc, Dependencies{AdminAPIKey: "s3cret"})

	for _, path := range []string{"/api/metrics", "/api/v1/metrics"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodDelete, path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		req := httptest.NewRequest(fiber.MethodDelete, path, nil)
		req.Header.Set("X-API-Key", "s3cret")
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 2, svc.cleared)
}

func TestRateLimit(t *testing.T) {
	app := newApp(&stubService{}, Dependencies{RateLimit: 2})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/take-rates", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, codes)
}

func TestMonitorDisabledWithoutCredentials(t *testing.T) {
	app := newApp(&stubService{}, Dependencies{})
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/internal/monitor", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
