package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leaderboard-rewards/internal/config"
)

type stubDistributor struct {
	calls atomic.Int64
	err   error
}

func (d *stubDistributor) DistributeWeeklyRewards(ctx context.Context) error {
	d.calls.Add(1)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return d.err
}

func testSchedulerConfig() *config.SchedulerConfig {
	return &config.SchedulerConfig{
		Cron:    "0 0 * * 0",
		Timeout: 5 * time.Minute,
		Enabled: true,
	}
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler := NewScheduler(&stubDistributor{}, testSchedulerConfig(), slog.Default())

	require.False(t, scheduler.IsRunning())
	require.NoError(t, scheduler.Start())
	require.True(t, scheduler.IsRunning())

	// Start is idempotent
	require.NoError(t, scheduler.Start())

	require.NoError(t, scheduler.Stop())
	require.False(t, scheduler.IsRunning())
	require.NoError(t, scheduler.Stop())
}

func TestSchedulerRejectsInvalidCron(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Cron = "not a schedule"

	scheduler := NewScheduler(&stubDistributor{}, cfg, slog.Default())
	require.Error(t, scheduler.Start())
	require.False(t, scheduler.IsRunning())
}

func TestSchedulerRunOnce(t *testing.T) {
	distributor := &stubDistributor{}
	scheduler := NewScheduler(distributor, testSchedulerConfig(), slog.Default())

	scheduler.RunOnce()
	require.Equal(t, int64(1), distributor.calls.Load())
}

func TestSchedulerRunOnceSwallowsErrors(t *testing.T) {
	distributor := &stubDistributor{err: errors.New("store down")}
	scheduler := NewScheduler(distributor, testSchedulerConfig(), slog.Default())

	// A failed run must not panic or propagate; the next tick retries
	scheduler.RunOnce()
	require.Equal(t, int64(1), distributor.calls.Load())
}
