package warmer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
)

const (
	DefaultSchedule = "@every 15m"
	defaultTimeout  = 5 * time.Minute
)

// SnapshotRefresher is the part of the snapshot cache the warmer drives.
type SnapshotRefresher interface {
	Peek() *models.Snapshot
	TTL() time.Duration
	Refresh(ctx context.Context) (*models.Snapshot, error)
}

// Warmer keeps the snapshot cache fresh in the background so dashboard
// requests rarely wait on a full fetch.
type Warmer struct {
	cron     *cron.Cron
	cache    SnapshotRefresher
	schedule string
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func New(cache SnapshotRefresher, schedule string, timeout time.Duration) *Warmer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := log.Logger.With().Str("component", "warmer").Logger()
	return &Warmer{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(&logger)))),
		cache:    cache,
		schedule: strings.TrimSpace(schedule),
		interval: scheduleInterval(schedule, time.Now()),
		timeout:  timeout,
		now:      time.Now,
	}
}

// scheduleInterval is the gap between two consecutive runs after from, or 0
// when the schedule does not parse.
func scheduleInterval(schedule string, from time.Time) time.Duration {
	sched, err := cron.ParseStandard(strings.TrimSpace(schedule))
	if err != nil {
		return 0
	}
	next := sched.Next(from)
	return sched.Next(next).Sub(next)
}

// NewFromEnv reads WARM_SCHEDULE. "off" disables the warmer.
func NewFromEnv(cache SnapshotRefresher) *Warmer {
	return New(cache, env.GetEnv("WARM_SCHEDULE", DefaultSchedule), env.GetEnvDuration("WARM_TIMEOUT", defaultTimeout))
}

func (w *Warmer) Enabled() bool {
	return w.schedule != "" && !strings.EqualFold(w.schedule, "off")
}

// Start schedules the warm job and starts the scheduler.
func (w *Warmer) Start() error {
	if !w.Enabled() {
		log.Info().Msg("cache warmer disabled")
		return nil
	}
	if _, err := w.cron.AddFunc(w.schedule, w.Warm); err != nil {
		return fmt.Errorf("schedule cache warmer %q: %w", w.schedule, err)
	}
	log.Info().Str("schedule", w.schedule).Msg("scheduled cache warmer")
	w.cron.Start()
	return nil
}

// Stop stops scheduling; the returned context is done once a running job ends.
func (w *Warmer) Stop() context.Context {
	return w.cron.Stop()
}

// Due reports whether the held snapshot would go stale before the next run
// could replace it. A missing snapshot is always due.
func (w *Warmer) Due(snap *models.Snapshot) bool {
	if snap == nil {
		return true
	}
	return snap.Age(w.now())+w.interval+w.timeout >= w.cache.TTL()
}

// Warm replaces the held snapshot when it is due, so readers never see it
// expire between two runs.
func (w *Warmer) Warm() {
	if held := w.cache.Peek(); !w.Due(held) {
		log.Debug().Str("snapshot", held.ID).Msg("cache warm skipped, snapshot fresh")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	started := time.Now()
	snap, err := w.cache.Refresh(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cache warm failed")
		return
	}
	log.Info().
		Str("snapshot", snap.ID).
		Dur("took", time.Since(started)).
		Msg("cache warm finished")
}
