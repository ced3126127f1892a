package statistics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Product{
		{ID: "prod_a", Name: "Alpha", RawMonthlyPrice: "10", EstimatedConversionRate: 45},
		{ID: "prod_b", Name: "Beta", RawMonthlyPrice: "20", EstimatedConversionRate: 40},
	}, nil, catalog.EmptyEmailDrop)
	require.NoError(t, err)
	return c
}

func day(d int) time.Time {
	return time.Date(2025, 6, d, 15, 0, 0, 0, time.UTC)
}

func rec(id, customer, product, status string, amount string, created time.Time) models.SubscriptionRecord {
	return models.SubscriptionRecord{
		SubscriptionID: id,
		CustomerID:     customer,
		ProductID:      product,
		Status:         status,
		Amount:         decimal.RequireFromString(amount),
		CreatedAt:      created,
	}
}

func dateRange(start, end time.Time) *models.DateRange {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return &models.DateRange{Start: &s, End: &e}
}

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		ID: "snap",
		Records: []models.SubscriptionRecord{
			rec("s1", "c1", "prod_a", models.BillingStatusActive, "10", day(1)),
			rec("s2", "c2", "prod_a", models.BillingStatusTrialing, "10", day(10)),
			rec("s3", "c2", "prod_b", models.BillingStatusActive, "20", day(10)),
			rec("s4", "c3", "prod_b", models.BillingStatusCancelled, "20", day(20)),
			rec("s5", "c4", "prod_a", models.BillingStatusPastDue, "10", day(20)),
		},
		Trials: []models.TrialConversion{
			{ProductID: "prod_a", Conversions: 3, TotalTrials: 6, ConversionRate: 50, Source: models.ConversionMeasured},
			{ProductID: "prod_b", Conversions: 1, TotalTrials: 4, ConversionRate: 25, Source: models.ConversionMeasured},
		},
	}
}

func TestComputeMetrics_AllTime(t *testing.T) {
	m := NewAggregator(testCatalog(t)).ComputeMetrics(sampleSnapshot(), nil, nil)

	assert.Equal(t, 2, m.Active)
	assert.Equal(t, 1, m.Trialing)
	assert.Equal(t, 1, m.Cancelled)
	assert.Equal(t, 5, m.TotalRecords)
	assert.Equal(t, 30.0, m.TotalMRR)
	assert.InDelta(t, 40.0, m.ConversionRate, 1e-9) // 4 of 10
	assert.Equal(t, models.ConversionScopeLifetime, m.Conversion.Scope)
	assert.False(t, m.Conversion.IsEstimated())
	assert.Nil(t, m.PeriodConversions)
	// c1=10, c2=30, c3=20, c4=10
	assert.InDelta(t, 17.5, m.AvgLTV, 1e-9)
	// (120*1 + 240*1) / 2
	assert.InDelta(t, 180.0, m.PredictiveLTV, 1e-9)
}

func TestComputeMetrics_DateRangeKeepsFullMRR(t *testing.T) {
	snap := sampleSnapshot()
	rng := dateRange(day(10), day(10))
	m := NewAggregator(testCatalog(t)).ComputeMetrics(snap, rng, nil)

	assert.Equal(t, 1, m.Active)
	assert.Equal(t, 1, m.Trialing)
	assert.Equal(t, 0, m.Cancelled)
	assert.Equal(t, 2, m.TotalRecords)
	assert.Equal(t, 30.0, m.TotalMRR)
	assert.InDelta(t, 30.0, m.AvgLTV, 1e-9)
	assert.InDelta(t, 240.0, m.PredictiveLTV, 1e-9)
}

func TestComputeMetrics_EndDateIsInclusive(t *testing.T) {
	snap := &models.Snapshot{Records: []models.SubscriptionRecord{
		rec("s1", "c1", "prod_a", models.BillingStatusTrialing, "10", time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)),
		rec("s2", "c2", "prod_a", models.BillingStatusTrialing, "10", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)),
	}}
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	m := NewAggregator(testCatalog(t)).ComputeMetrics(snap, &models.DateRange{End: &end}, nil)
	assert.Equal(t, 1, m.Trialing)
}

func TestComputeMetrics_PeriodConversionRate(t *testing.T) {
	agg := NewAggregator(testCatalog(t))
	rng := dateRange(day(1), day(30))

	m := agg.ComputeMetrics(sampleSnapshot(), rng, &models.TrialCounts{Started: 4, Converted: 3})
	assert.Equal(t, 75.0, m.ConversionRate)
	assert.Equal(t, models.ConversionScopePeriod, m.Conversion.Scope)
	require.NotNil(t, m.PeriodConversions)
	assert.Equal(t, 3, *m.PeriodConversions)

	// No trials started in the period falls back to the lifetime table.
	m = agg.ComputeMetrics(sampleSnapshot(), rng, &models.TrialCounts{Started: 0, Converted: 2})
	assert.InDelta(t, 40.0, m.ConversionRate, 1e-9)
	assert.Equal(t, models.ConversionScopeLifetime, m.Conversion.Scope)
}

func TestComputeMetrics_EstimatedTrialsAreTagged(t *testing.T) {
	snap := sampleSnapshot()
	snap.Trials[1].Source = models.ConversionEstimated

	m := NewAggregator(testCatalog(t)).ComputeMetrics(snap, nil, nil)
	assert.True(t, m.Conversion.IsEstimated())
	assert.Equal(t, models.ConversionEstimated, m.Conversion.Source)
}

func TestComputeMetrics_EmptySnapshot(t *testing.T) {
	agg := NewAggregator(testCatalog(t))
	for _, snap := range []*models.Snapshot{nil, {}} {
		m := agg.ComputeMetrics(snap, nil, nil)
		assert.Equal(t, 0.0, m.ConversionRate)
		assert.Equal(t, 0.0, m.AvgLTV)
		assert.Equal(t, 0.0, m.PredictiveLTV)
		assert.Equal(t, 0.0, m.TotalMRR)
		assert.Empty(t, agg.ComputeProductMetrics(snap, nil))
	}
}

func TestComputeMetrics_RevenueExample(t *testing.T) {
	snap := &models.Snapshot{Records: []models.SubscriptionRecord{
		rec("s1", "c1", "prod_a", models.BillingStatusActive, "10", day(1)),
		rec("s2", "c1", "prod_a", models.BillingStatusActive, "20", day(2)),
		rec("s3", "c2", "prod_b", models.BillingStatusActive, "30", day(3)),
	}}
	m := NewAggregator(testCatalog(t)).ComputeMetrics(snap, nil, nil)
	assert.Equal(t, 60.0, m.TotalMRR)
	assert.Equal(t, 30.0, m.AvgLTV)
}

func TestComputeMetrics_Idempotent(t *testing.T) {
	agg := NewAggregator(testCatalog(t))
	snap := sampleSnapshot()
	rng := dateRange(day(5), day(25))
	period := &models.TrialCounts{Started: 3, Converted: 1}

	first := agg.ComputeMetrics(snap, rng, period)
	second := agg.ComputeMetrics(snap, rng, period)
	assert.Equal(t, first, second)
	assert.Equal(t, sampleSnapshot(), snap)

	assert.Equal(t, agg.ComputeProductMetrics(snap, rng), agg.ComputeProductMetrics(snap, rng))
}

func TestComputeMetrics_CountsNeverExceedRecords(t *testing.T) {
	agg := NewAggregator(testCatalog(t))
	snap := sampleSnapshot()
	for _, rng := range []*models.DateRange{nil, dateRange(day(1), day(1)), dateRange(day(10), day(20))} {
		m := agg.ComputeMetrics(snap, rng, nil)
		assert.LessOrEqual(t, m.Active+m.Trialing+m.Cancelled, len(snap.Records))
	}
}

func TestComputeProductMetrics(t *testing.T) {
	agg := NewAggregator(testCatalog(t))
	snap := sampleSnapshot()

	pm := agg.ComputeProductMetrics(snap, nil)
	require.Len(t, pm, 2)

	alpha := pm["Alpha"]
	assert.Equal(t, 1, alpha.Active)
	assert.Equal(t, 1, alpha.Trialing)
	assert.Equal(t, 3, alpha.Total)
	assert.Equal(t, 10.0, alpha.MRR)
	assert.Equal(t, 50.0, alpha.ConversionRate)
	assert.Equal(t, models.ConversionMeasured, alpha.ConversionFrom)
	assert.Equal(t, 120.0, alpha.PredictiveLTV)
	assert.InDelta(t, 10.0, alpha.AvgLTV, 1e-9)

	beta := pm["Beta"]
	assert.Equal(t, 1, beta.Cancelled)
	assert.Equal(t, 240.0, beta.PredictiveLTV)

	total := 0
	for _, p := range pm {
		total += p.Total
	}
	assert.Equal(t, len(snap.Records), total)
}

func TestComputeProductMetrics_SkipsProductsWithoutRecordsInRange(t *testing.T) {
	pm := NewAggregator(testCatalog(t)).ComputeProductMetrics(sampleSnapshot(), dateRange(day(1), day(1)))
	require.Len(t, pm, 1)
	alpha, ok := pm["Alpha"]
	require.True(t, ok)
	assert.Equal(t, 1, alpha.Total)
	// MRR still covers every active Alpha record.
	assert.Equal(t, 10.0, alpha.MRR)
}
