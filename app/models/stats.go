package models

import (
	"time"
)

// ConversionSource tells whether a conversion figure was measured from billing
// events or synthesised from the catalog estimates.
type ConversionSource string

const (
	ConversionMeasured  ConversionSource = "measured"
	ConversionEstimated ConversionSource = "estimated"
)

// ConversionScope is the time window a conversion figure covers.
type ConversionScope string

const (
	ConversionScopePeriod   ConversionScope = "period"
	ConversionScopeLifetime ConversionScope = "lifetime"
)

// TrialCounts holds trial starts and trial-to-active conversions for one product.
type TrialCounts struct {
	Started   int `json:"started"`
	Converted int `json:"converted"`
}

// ConversionRate is the tagged result of a trial conversion calculation.
type ConversionRate struct {
	Value     float64          `json:"value"`
	Source    ConversionSource `json:"source"`
	Scope     ConversionScope  `json:"scope"`
	Converted int              `json:"converted"`
	Started   int              `json:"started"`
}

func (r ConversionRate) IsEstimated() bool {
	return r.Source == ConversionEstimated
}

// TrialConversion is the per-product conversion row returned as trialConversions.
type TrialConversion struct {
	ProductID      string           `json:"productId"`
	ProductName    string           `json:"productName"`
	Conversions    int              `json:"conversions"`
	TotalTrials    int              `json:"total_trials"`
	ConversionRate float64          `json:"conversion_rate"`
	Source         ConversionSource `json:"source"`
}

// DateRange restricts "new in period" counts by created_at. Nil bounds are open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls in the range. End is inclusive through the
// last nanosecond of its calendar day.
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil {
		endOfDay := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, r.End.Location()).
			Add(24*time.Hour - time.Nanosecond)
		if t.After(endOfDay) {
			return false
		}
	}
	return true
}

func (r *DateRange) IsZero() bool {
	return r == nil || (r.Start == nil && r.End == nil)
}

// AggregateMetrics is the dashboard-wide rollup.
type AggregateMetrics struct {
	Active            int            `json:"active"`
	Trialing          int            `json:"trialing"`
	Cancelled         int            `json:"cancelled"`
	TotalMRR          float64        `json:"total_mrr"`
	ConversionRate    float64        `json:"conversion_rate"`
	Conversion        ConversionRate `json:"conversion"`
	TotalRecords      int            `json:"total_records"`
	AvgLTV            float64        `json:"avg_ltv"`
	PredictiveLTV     float64        `json:"predictive_ltv"`
	PeriodConversions *int           `json:"period_conversions,omitempty"`
	TakeRateData      TakeRateData   `json:"take_rate_data"`
}

// ProductMetrics is the rollup for a single monitored product.
type ProductMetrics struct {
	Active         int              `json:"active"`
	Trialing       int              `json:"trialing"`
	Cancelled      int              `json:"cancelled"`
	MRR            float64          `json:"mrr"`
	ConversionRate float64          `json:"conversion_rate"`
	ConversionFrom ConversionSource `json:"conversion_source"`
	Total          int              `json:"total"`
	AvgLTV         float64          `json:"avg_ltv"`
	PredictiveLTV  float64          `json:"predictive_ltv"`
}

// DashboardData is the payload of GET /api/metrics.
type DashboardData struct {
	Metrics          AggregateMetrics          `json:"metrics"`
	ProductMetrics   map[string]ProductMetrics `json:"productMetrics"`
	TrialConversions []TrialConversion         `json:"trialConversions"`
	LastUpdated      time.Time                 `json:"lastUpdated"`
	Cached           bool                      `json:"cached"`
	SnapshotID       string                    `json:"snapshotId"`
	CapturedAt       time.Time                 `json:"capturedAt"`
}
