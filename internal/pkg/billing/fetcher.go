package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/catalog"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/metrics/counter"
)

const (
	// Stripe lists events of the last 30 days only.
	stripeEventRetentionDays = 30
	defaultHistoryDays       = stripeEventRetentionDays
)

var (
	ErrListSubscriptions = errors.New("list subscriptions")
	ErrListEvents        = errors.New("list subscription events")
)

// Fetcher turns the provider's paginated listings into snapshot records for
// the monitored products.
type Fetcher struct {
	api           API
	catalog       *catalog.Catalog
	historyWindow time.Duration
	now           func() time.Time
}

// NewFetcher creates a fetcher. A non-positive historyWindow selects the
// default of 30 days.
func NewFetcher(api API, cat *catalog.Catalog, historyWindow time.Duration) *Fetcher {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryDays * 24 * time.Hour
	}
	return &Fetcher{
		api:           api,
		catalog:       cat,
		historyWindow: historyWindow,
		now:           time.Now,
	}
}

// NewFetcherFromEnv wires a Stripe client with CONVERSION_HISTORY_DAYS.
func NewFetcherFromEnv(cat *catalog.Catalog) (*Fetcher, error) {
	api, err := NewStripeClientFromEnv()
	if err != nil {
		return nil, err
	}
	days := historyDays(
		env.GetEnvInt("CONVERSION_HISTORY_DAYS", defaultHistoryDays),
		env.GetEnv("STRIPE_API_BASE_URL", "") != "",
	)
	return NewFetcher(api, cat, time.Duration(days)*24*time.Hour), nil
}

// historyDays caps the conversion history window at Stripe's event retention.
// A custom backend keeps the requested window.
func historyDays(requested int, customBackend bool) int {
	if requested <= 0 {
		return defaultHistoryDays
	}
	if requested > stripeEventRetentionDays && !customBackend {
		log.Warn().
			Int("requested", requested).
			Int("used", stripeEventRetentionDays).
			Msg("CONVERSION_HISTORY_DAYS exceeds Stripe event retention, capping")
		return stripeEventRetentionDays
	}
	return requested
}

// FetchSubscriptions reads every subscription page and returns the records
// belonging to monitored products. Customer emails are looked up at most once
// per customer within one call.
func (f *Fetcher) FetchSubscriptions(ctx context.Context) ([]models.SubscriptionRecord, error) {
	emails := make(map[string]string)
	var records []models.SubscriptionRecord

	cursor := ""
	for {
		page, err := f.api.ListSubscriptions(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrListSubscriptions, err)
		}
		counter.PagesFetched.WithLabelValues("subscriptions").Inc()

		for _, sub := range page.Subscriptions {
			if rec, ok := f.toRecord(ctx, sub, emails); ok {
				records = append(records, rec)
			}
		}

		if !page.HasMore || len(page.Subscriptions) == 0 {
			break
		}
		cursor = page.Subscriptions[len(page.Subscriptions)-1].ID
	}
	return records, nil
}

func (f *Fetcher) toRecord(ctx context.Context, sub RemoteSubscription, emails map[string]string) (models.SubscriptionRecord, bool) {
	item, ok := lo.Find(sub.Items, func(li LineItem) bool {
		_, monitored := f.catalog.Lookup(li.ProductID)
		return monitored
	})
	if !ok {
		return models.SubscriptionRecord{}, false
	}

	email := f.customerEmail(ctx, sub.CustomerID, emails)
	if email == "" && f.catalog.EmptyEmailPolicy == catalog.EmptyEmailDrop {
		log.Debug().Str("subscription", sub.ID).Msg("skipping subscription without customer email")
		return models.SubscriptionRecord{}, false
	}
	if email != "" && f.catalog.IsExcluded(email) {
		return models.SubscriptionRecord{}, false
	}

	return models.SubscriptionRecord{
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		CustomerEmail:  email,
		ProductID:      item.ProductID,
		Status:         models.NormalizeBillingStatus(sub.Status),
		Amount:         decimal.New(item.UnitAmount, -2),
		CreatedAt:      sub.Created.UTC(),
	}, true
}

func (f *Fetcher) customerEmail(ctx context.Context, customerID string, memo map[string]string) string {
	if customerID == "" {
		return ""
	}
	if email, ok := memo[customerID]; ok {
		return email
	}
	email, err := f.api.CustomerEmail(ctx, customerID)
	if err != nil {
		// Not memoised so a later subscription of the same customer retries.
		counter.CustomerLookupFailures.Inc()
		log.Warn().Err(err).Str("customer", customerID).Msg("customer email lookup failed")
		return ""
	}
	email = catalog.NormalizeEmail(email)
	memo[customerID] = email
	return email
}

// FetchEvents reads every event of eventType created within [start, end].
func (f *Fetcher) FetchEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error) {
	var events []Event
	cursor := ""
	for {
		page, err := f.api.ListEvents(ctx, eventType, start, end, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrListEvents, err)
		}
		counter.PagesFetched.WithLabelValues("events").Inc()
		events = append(events, page.Events...)

		next := page.LastID
		if next == "" && len(page.Events) > 0 {
			next = page.Events[len(page.Events)-1].ID
		}
		if !page.HasMore || next == "" {
			break
		}
		cursor = next
	}
	return events, nil
}

// TrialConversions counts trial starts and conversions per monitored product
// for events created within [start, end].
func (f *Fetcher) TrialConversions(ctx context.Context, start, end time.Time) (map[string]models.TrialCounts, error) {
	counts := make(map[string]models.TrialCounts)
	for _, eventType := range []string{EventSubscriptionCreated, EventSubscriptionUpdated} {
		events, err := f.FetchEvents(ctx, eventType, start, end)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			transition := ClassifyEvent(ev)
			if transition == TransitionNone {
				continue
			}
			product, ok := f.catalog.Match(ev.Subscription.ProductIDs())
			if !ok {
				continue
			}
			c := counts[product.ID]
			switch transition {
			case TransitionTrialStarted:
				c.Started++
			case TransitionTrialConverted:
				c.Converted++
			}
			counts[product.ID] = c
		}
	}
	return counts, nil
}

// PeriodConversions totals trial activity across all monitored products for
// the given range. Open bounds fall back to the history window and now.
func (f *Fetcher) PeriodConversions(ctx context.Context, rng *models.DateRange) (models.TrialCounts, error) {
	now := f.now().UTC()
	start := now.Add(-f.historyWindow)
	end := now
	if rng != nil && rng.Start != nil {
		start = *rng.Start
	}
	if rng != nil && rng.End != nil {
		e := *rng.End
		end = time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 0, e.Location())
	}

	counts, err := f.TrialConversions(ctx, start, end)
	if err != nil {
		return models.TrialCounts{}, err
	}
	var total models.TrialCounts
	for _, c := range counts {
		total.Started += c.Started
		total.Converted += c.Converted
	}
	return total, nil
}

// HistoricalConversions builds the lifetime trial table over the history
// window, one row per monitored product in catalog order.
func (f *Fetcher) HistoricalConversions(ctx context.Context) ([]models.TrialConversion, error) {
	now := f.now().UTC()
	counts, err := f.TrialConversions(ctx, now.Add(-f.historyWindow), now)
	if err != nil {
		return nil, err
	}

	rows := make([]models.TrialConversion, 0, len(f.catalog.Products()))
	for _, p := range f.catalog.Products() {
		c := counts[p.ID]
		rows = append(rows, models.TrialConversion{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Conversions:    c.Converted,
			TotalTrials:    c.Started,
			ConversionRate: Rate(c.Converted, c.Started),
			Source:         models.ConversionMeasured,
		})
	}
	return rows, nil
}

// EstimateConversions synthesises the trial table from active counts and the
// catalog's estimated conversion rates.
func EstimateConversions(cat *catalog.Catalog, records []models.SubscriptionRecord) []models.TrialConversion {
	products := cat.Products()
	rows := make([]models.TrialConversion, 0, len(products))
	for _, p := range products {
		active := lo.CountBy(records, func(r models.SubscriptionRecord) bool {
			return r.ProductID == p.ID && r.IsActive()
		})
		trials := 0
		if active > 0 && p.EstimatedConversionRate > 0 {
			trials = int(math.Round(float64(active) / (p.EstimatedConversionRate / 100)))
		}
		rows = append(rows, models.TrialConversion{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Conversions:    active,
			TotalTrials:    trials,
			ConversionRate: p.EstimatedConversionRate,
			Source:         models.ConversionEstimated,
		})
	}
	return rows
}

// FetchSnapshot runs one full fetch cycle. Failing subscription listings fail
// the cycle; failing event listings degrade to estimated trial figures.
func (f *Fetcher) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	started := time.Now()
	defer func() {
		counter.FetchDuration.Observe(time.Since(started).Seconds())
	}()

	records, err := f.FetchSubscriptions(ctx)
	if err != nil {
		counter.FetchTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	trials, err := f.HistoricalConversions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("trial history unavailable, using estimated conversion rates")
		trials = EstimateConversions(f.catalog, records)
	}

	snap := &models.Snapshot{
		ID:         uuid.NewString(),
		Records:    records,
		Trials:     trials,
		CapturedAt: f.now().UTC(),
	}
	counter.FetchTotal.WithLabelValues("ok").Inc()
	counter.SnapshotRecords.Set(float64(len(records)))
	log.Info().
		Str("snapshot", snap.ID).
		Int("records", len(records)).
		Bool("estimated_trials", snap.TrialsEstimated()).
		Dur("took", time.Since(started)).
		Msg("billing snapshot fetched")
	return snap, nil
}

// Rate returns converted/started as a percentage, 0 when nothing started.
func Rate(converted, started int) float64 {
	if started <= 0 {
		return 0
	}
	return float64(converted) / float64(started) * 100
}
