package statistics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/catalog"
)

// SnapshotSource is the snapshot cache as seen by the dashboard.
type SnapshotSource interface {
	Get(ctx context.Context) (*models.Snapshot, bool, error)
	Invalidate()
}

// PeriodCounter reports trial activity for a date range.
type PeriodCounter interface {
	PeriodConversions(ctx context.Context, rng *models.DateRange) (models.TrialCounts, error)
}

// TakeRateSource lists take-rate entries oldest first.
type TakeRateSource interface {
	List(ctx context.Context) ([]models.TakeRateEntry, error)
}

// Service assembles the dashboard payload. periods and takeRates are optional.
type Service struct {
	snapshots  SnapshotSource
	periods    PeriodCounter
	takeRates  TakeRateSource
	aggregator *Aggregator
	now        func() time.Time
}

func NewService(cat *catalog.Catalog, snapshots SnapshotSource, periods PeriodCounter, takeRates TakeRateSource) *Service {
	return &Service{
		snapshots:  snapshots,
		periods:    periods,
		takeRates:  takeRates,
		aggregator: NewAggregator(cat),
		now:        time.Now,
	}
}

// Dashboard returns the metrics for rng. Only a snapshot failure is fatal;
// period counts and take rates degrade to their fallbacks.
func (s *Service) Dashboard(ctx context.Context, rng *models.DateRange) (*models.DashboardData, error) {
	snap, cached, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}

	var period *models.TrialCounts
	if !rng.IsZero() && s.periods != nil {
		counts, err := s.periods.PeriodConversions(ctx, rng)
		if err != nil {
			log.Warn().Err(err).Msg("period conversions unavailable, using lifetime rate")
		} else {
			period = &counts
		}
	}

	metrics := s.aggregator.ComputeMetrics(snap, rng, period)
	metrics.TakeRateData = s.takeRateData(ctx)

	trials := make([]models.TrialConversion, len(snap.Trials))
	copy(trials, snap.Trials)

	return &models.DashboardData{
		Metrics:          metrics,
		ProductMetrics:   s.aggregator.ComputeProductMetrics(snap, rng),
		TrialConversions: trials,
		LastUpdated:      s.now().UTC(),
		Cached:           cached,
		SnapshotID:       snap.ID,
		CapturedAt:       snap.CapturedAt,
	}, nil
}

// TakeRates returns the take-rate block on its own.
func (s *Service) TakeRates(ctx context.Context) (models.TakeRateData, error) {
	if s.takeRates == nil {
		return BuildTakeRateData(nil), nil
	}
	entries, err := s.takeRates.List(ctx)
	if err != nil {
		return models.TakeRateData{}, err
	}
	return BuildTakeRateData(entries), nil
}

func (s *Service) ClearCache() {
	s.snapshots.Invalidate()
}

func (s *Service) takeRateData(ctx context.Context) models.TakeRateData {
	data, err := s.TakeRates(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("take rate history unavailable")
		return BuildTakeRateData(nil)
	}
	return data
}
