package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/constants"
)

// HealthCheck probes one dependency. Returning nil means healthy.
type HealthCheck func(ctx context.Context) error

// SnapshotPeeker exposes the held snapshot without triggering a fetch
type SnapshotPeeker interface {
	Peek() *models.Snapshot
	TTL() time.Duration
}

// HealthController reports liveness and dependency state
type HealthController struct {
	snapshots SnapshotPeeker
	checks    map[string]HealthCheck
	now       func() time.Time
}

// NewHealthController creates a health controller. checks may be empty.
func NewHealthController(snapshots SnapshotPeeker, checks map[string]HealthCheck) *HealthController {
	return &HealthController{snapshots: snapshots, checks: checks, now: time.Now}
}

// HandleHealthz serves GET /healthz. Failing dependency checks degrade the
// status but never fail liveness.
func (hc *HealthController) HandleHealthz(c *fiber.Ctx) error {
	status := "ok"
	results := make(map[string]string, len(hc.checks))
	for name, check := range hc.checks {
		if err := check(c.UserContext()); err != nil {
			results[name] = err.Error()
			status = "degraded"
			continue
		}
		results[name] = "ok"
	}

	body := fiber.Map{
		"status":  status,
		"checks":  results,
		"version": constants.Version,
	}
	if hc.snapshots != nil {
		snapshot := fiber.Map{"loaded": false, "ttl": hc.snapshots.TTL().String()}
		if snap := hc.snapshots.Peek(); snap != nil {
			snapshot["loaded"] = true
			snapshot["id"] = snap.ID
			snapshot["captured_at"] = snap.CapturedAt
			snapshot["age_seconds"] = int(snap.Age(hc.now()).Seconds())
			snapshot["records"] = len(snap.Records)
			snapshot["estimated_trials"] = snap.TrialsEstimated()
		}
		body["snapshot"] = snapshot
	}
	return c.JSON(body)
}

// HandlePing serves GET /api/v1/ping
func HandlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ping": "pong", "version": constants.Version})
}
