package warmer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/snapshot"
)

type fakeCache struct {
	held  *models.Snapshot
	calls int
	err   error
}

func (f *fakeCache) Peek() *models.Snapshot {
	return f.held
}

func (f *fakeCache) TTL() time.Duration {
	return 30 * time.Minute
}

func (f *fakeCache) Refresh(ctx context.Context) (*models.Snapshot, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("warm without deadline")
	}
	if f.err != nil {
		return nil, f.err
	}
	f.held = &models.Snapshot{ID: "warm", CapturedAt: time.Now()}
	return f.held, nil
}

func TestWarm(t *testing.T) {
	c := &fakeCache{}
	New(c, DefaultSchedule, 0).Warm()
	assert.Equal(t, 1, c.calls)

	c.held = nil
	c.err = errors.New("stripe down")
	New(c, DefaultSchedule, 0).Warm()
	assert.Equal(t, 2, c.calls)
	assert.Nil(t, c.held)
}

func TestDue(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	w := New(&fakeCache{}, "@every 5m", time.Minute)
	w.now = func() time.Time { return now }
	require.Equal(t, 5*time.Minute, w.interval)

	assert.True(t, w.Due(nil))
	assert.False(t, w.Due(&models.Snapshot{CapturedAt: now.Add(-10 * time.Minute)}))
	// 24m old + next run in 5m + 1m fetch budget reaches the 30m window
	assert.True(t, w.Due(&models.Snapshot{CapturedAt: now.Add(-24 * time.Minute)}))
}

func TestWarm_SkipsWhenNotDue(t *testing.T) {
	c := &fakeCache{held: &models.Snapshot{ID: "held", CapturedAt: time.Now()}}
	New(c, "@every 1m", time.Second).Warm()
	assert.Zero(t, c.calls)
}

func TestScheduleInterval(t *testing.T) {
	from := time.Date(2025, 7, 1, 12, 7, 0, 0, time.UTC)
	assert.Equal(t, 15*time.Minute, scheduleInterval("@every 15m", from))
	assert.Equal(t, time.Hour, scheduleInterval("0 * * * *", from))
	assert.Zero(t, scheduleInterval("off", from))
}

// Fetches take 20s of fake time. Requests made every minute between runs
// must never find the cache stale.
func TestWarm_KeepsCacheFreshAcrossRuns(t *testing.T) {
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	var (
		mu    sync.Mutex
		now   = base
		loads int
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	setClock := func(t time.Time) {
		mu.Lock()
		now = t
		mu.Unlock()
	}

	loader := snapshot.LoaderFunc(func(context.Context) (*models.Snapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		now = now.Add(20 * time.Second)
		return &models.Snapshot{ID: fmt.Sprintf("s%d", loads), CapturedAt: now}, nil
	})
	cache := snapshot.New(loader, 30*time.Minute, snapshot.WithClock(clock))
	w := New(cache, "@every 15m", time.Minute)
	w.now = clock

	ctx := context.Background()
	for minute := 0; minute <= 120; minute++ {
		setClock(base.Add(time.Duration(minute) * time.Minute))
		if minute%15 == 0 {
			w.Warm()
		}
		setClock(base.Add(time.Duration(minute)*time.Minute + 30*time.Second))
		_, cached, err := cache.Get(ctx)
		require.NoError(t, err)
		require.True(t, cached, "request at minute %d had to fetch", minute)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 9, loads)
}

func TestStart(t *testing.T) {
	w := New(&fakeCache{}, "@every 15m", 0)
	require.NoError(t, w.Start())
	defer w.Stop()
	assert.Len(t, w.cron.Entries(), 1)
}

func TestStart_InvalidSchedule(t *testing.T) {
	w := New(&fakeCache{}, "every now and then", 0)
	assert.Error(t, w.Start())
}

func TestStart_Disabled(t *testing.T) {
	for _, schedule := range []string{"", "off", "OFF"} {
		w := New(&fakeCache{}, schedule, 0)
		assert.False(t, w.Enabled())
		require.NoError(t, w.Start())
		assert.Empty(t, w.cron.Entries())
	}
}
