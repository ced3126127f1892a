package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/statistics"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/viewmodel"
)

// DashboardController renders the server side dashboard page
type DashboardController struct {
	service DashboardService
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(service DashboardService) *DashboardController {
	return &DashboardController{service: service}
}

// HandleIndex renders views/index.html for the optional date range
func (dc *DashboardController) HandleIndex(c *fiber.Ctx) error {
	startDate, endDate := c.Query("start_date"), c.Query("end_date")
	layout := viewmodel.Layout{
		Page:  "dashboard",
		Title: "Subscription Metrics",
		IsDev: env.IsDev(),
	}
	bind := fiber.Map{
		"Title":     layout.Title,
		"StartDate": startDate,
		"EndDate":   endDate,
		"IsDev":     layout.IsDev,
		"Layout":    layout,
	}
	fail := func(status int, msg string) error {
		layout.IsError = true
		layout.Msg = msg
		bind["Layout"] = layout
		bind["Error"] = msg
		return c.Status(status).Render("index", bind)
	}

	rng, err := statistics.ParseDateRange(startDate, endDate)
	if err != nil {
		return fail(fiber.StatusBadRequest, err.Error())
	}

	data, err := dc.service.Dashboard(c.UserContext(), rng)
	if err != nil {
		log.Error().Err(err).Msg("dashboard render without data")
		return fail(fiber.StatusServiceUnavailable, "Failed to fetch metrics data")
	}

	bind["Data"] = data
	bind["Metrics"] = data.Metrics
	bind["Products"] = data.ProductMetrics
	bind["Trials"] = data.TrialConversions
	bind["TakeRate"] = data.Metrics.TakeRateData
	return c.Render("index", bind)
}
