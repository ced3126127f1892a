package statistics

import (
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/catalog"
)

// Aggregator derives dashboard figures from a snapshot. It never mutates the
// snapshot, so the same inputs always produce the same output.
type Aggregator struct {
	catalog *catalog.Catalog
}

func NewAggregator(cat *catalog.Catalog) *Aggregator {
	return &Aggregator{catalog: cat}
}

// ComputeMetrics builds the dashboard-wide rollup. Counts and LTV use the
// records created within rng, MRR uses every active record. period holds the
// event-sourced trial counts for rng when they are available.
func (a *Aggregator) ComputeMetrics(snap *models.Snapshot, rng *models.DateRange, period *models.TrialCounts) models.AggregateMetrics {
	all := snapshotRecords(snap)
	filtered := FilterRecords(all, rng)

	m := models.AggregateMetrics{TotalRecords: len(filtered)}
	m.Active, m.Trialing, m.Cancelled = countStatuses(filtered)
	m.TotalMRR = monthlyRevenue(all).InexactFloat64()

	m.Conversion = ConversionRateFor(snapshotTrials(snap), rng, period)
	m.ConversionRate = m.Conversion.Value
	if period != nil {
		converted := period.Converted
		m.PeriodConversions = &converted
	}

	m.AvgLTV = averageLTV(filtered).InexactFloat64()
	m.PredictiveLTV = a.predictiveLTV(filtered).InexactFloat64()
	return m
}

// ComputeProductMetrics returns one rollup per monitored product name. Products
// without records in rng are left out.
func (a *Aggregator) ComputeProductMetrics(snap *models.Snapshot, rng *models.DateRange) map[string]models.ProductMetrics {
	all := snapshotRecords(snap)
	filtered := FilterRecords(all, rng)
	trials := snapshotTrials(snap)

	out := make(map[string]models.ProductMetrics)
	for _, p := range a.catalog.Products() {
		productRecords := byProduct(filtered, p.ID)
		if len(productRecords) == 0 {
			continue
		}

		pm := models.ProductMetrics{
			Total:         len(productRecords),
			MRR:           monthlyRevenue(byProduct(all, p.ID)).InexactFloat64(),
			AvgLTV:        averageLTV(productRecords).InexactFloat64(),
			PredictiveLTV: p.AnnualValue().InexactFloat64(),
		}
		pm.Active, pm.Trialing, pm.Cancelled = countStatuses(productRecords)
		for _, t := range trials {
			if t.ProductID == p.ID {
				pm.ConversionRate = t.ConversionRate
				pm.ConversionFrom = t.Source
				break
			}
		}
		out[p.Name] = pm
	}
	return out
}

// ConversionRateFor prefers the period counts when a range was requested and
// trials started in it, and falls back to the lifetime trial table.
func ConversionRateFor(trials []models.TrialConversion, rng *models.DateRange, period *models.TrialCounts) models.ConversionRate {
	if !rng.IsZero() && period != nil && period.Started > 0 {
		return models.ConversionRate{
			Value:     percentage(period.Converted, period.Started),
			Source:    models.ConversionMeasured,
			Scope:     models.ConversionScopePeriod,
			Converted: period.Converted,
			Started:   period.Started,
		}
	}

	rate := models.ConversionRate{
		Source: models.ConversionMeasured,
		Scope:  models.ConversionScopeLifetime,
	}
	for _, t := range trials {
		rate.Converted += t.Conversions
		rate.Started += t.TotalTrials
		if t.Source == models.ConversionEstimated {
			rate.Source = models.ConversionEstimated
		}
	}
	rate.Value = percentage(rate.Converted, rate.Started)
	return rate
}

// FilterRecords returns the records created within rng. A nil or empty range
// returns records unchanged.
func FilterRecords(records []models.SubscriptionRecord, rng *models.DateRange) []models.SubscriptionRecord {
	if rng.IsZero() {
		return records
	}
	out := make([]models.SubscriptionRecord, 0, len(records))
	for _, r := range records {
		if rng.Contains(r.CreatedAt) {
			out = append(out, r)
		}
	}
	return out
}

func (a *Aggregator) predictiveLTV(records []models.SubscriptionRecord) decimal.Decimal {
	weighted := decimal.Zero
	totalActive := 0
	for _, p := range a.catalog.Products() {
		active := 0
		for _, r := range records {
			if r.ProductID == p.ID && r.IsActive() {
				active++
			}
		}
		if active == 0 {
			continue
		}
		weighted = weighted.Add(p.AnnualValue().Mul(decimal.NewFromInt(int64(active))))
		totalActive += active
	}
	if totalActive == 0 {
		return decimal.Zero
	}
	return weighted.Div(decimal.NewFromInt(int64(totalActive)))
}

func countStatuses(records []models.SubscriptionRecord) (active, trialing, cancelled int) {
	for _, r := range records {
		switch {
		case r.IsActive():
			active++
		case r.IsTrialing():
			trialing++
		case r.IsCancelled():
			cancelled++
		}
	}
	return active, trialing, cancelled
}

func monthlyRevenue(records []models.SubscriptionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.IsActive() {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// averageLTV sums amounts per distinct customer and averages over customers.
func averageLTV(records []models.SubscriptionRecord) decimal.Decimal {
	perCustomer := make(map[string]decimal.Decimal)
	for _, r := range records {
		perCustomer[r.CustomerID] = perCustomer[r.CustomerID].Add(r.Amount)
	}
	if len(perCustomer) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, v := range perCustomer {
		total = total.Add(v)
	}
	return total.Div(decimal.NewFromInt(int64(len(perCustomer))))
}

func byProduct(records []models.SubscriptionRecord, productID string) []models.SubscriptionRecord {
	var out []models.SubscriptionRecord
	for _, r := range records {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out
}

func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func snapshotRecords(snap *models.Snapshot) []models.SubscriptionRecord {
	if snap == nil {
		return nil
	}
	return snap.Records
}

func snapshotTrials(snap *models.Snapshot) []models.TrialConversion {
	if snap == nil {
		return nil
	}
	return snap.Trials
}
