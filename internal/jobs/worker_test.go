package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_EnqueueAsyncCompletesBeforeShutdown(t *testing.T) {
	w := NewWorker(1)
	var ran atomic.Int32

	for i := 0; i < 5; i++ {
		w.EnqueueAsync(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	w.Shutdown()

	assert.Equal(t, int32(5), ran.Load())
	stats := w.GetStats()
	assert.Equal(t, int64(5), stats.CompletedJobs)
	assert.Equal(t, int64(0), stats.FailedJobs)
	assert.Equal(t, 0, stats.ActiveJobs)
}

func TestWorker_AsyncFailuresAndPanicsAreCounted(t *testing.T) {
	w := NewWorker(1)

	w.EnqueueAsync(func(ctx context.Context) error { return errors.New("boom") })
	w.EnqueueAsync(func(ctx context.Context) error { panic("kaboom") })
	w.Shutdown()

	stats := w.GetStats()
	assert.Equal(t, int64(2), stats.CompletedJobs)
	assert.Equal(t, int64(2), stats.FailedJobs)
}

func TestWorker_RunNowRecordsScheduledStatus(t *testing.T) {
	w := NewWorker(1)
	defer w.Shutdown()

	require.NoError(t, w.RunNow(context.Background(), "sweep", func(ctx context.Context) error { return nil }))
	err := w.RunNow(context.Background(), "sweep", func(ctx context.Context) error { return errors.New("db down") })
	require.EqualError(t, err, "db down")

	stats := w.GetStats()
	require.Len(t, stats.Scheduled, 1)
	status := stats.Scheduled[0]
	assert.Equal(t, "sweep", status.Name)
	assert.Equal(t, int64(2), status.Runs)
	assert.Equal(t, int64(1), status.Failures)
	assert.Equal(t, "db down", status.LastError)
	assert.NotNil(t, status.LastRunAt)
}

func TestWorker_RunNowRecoversPanic(t *testing.T) {
	w := NewWorker(1)
	defer w.Shutdown()

	err := w.RunNow(context.Background(), "stats", func(ctx context.Context) error { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: bad")
}

func TestWorker_ScheduleEveryImmediateRunsAtStart(t *testing.T) {
	w := NewWorker(1)
	done := make(chan struct{}, 1)

	w.ScheduleEveryImmediate("tick", time.Hour, func(ctx context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled job did not run at start")
	}
	w.Shutdown()

	stats := w.GetStats()
	require.Len(t, stats.Scheduled, 1)
	assert.Equal(t, "1h0m0s", stats.Scheduled[0].Interval)
	assert.Equal(t, int64(1), stats.Scheduled[0].Runs)
}

func TestWorker_EnqueueRunsOnPoolAndRecordsName(t *testing.T) {
	w := NewWorker(2)
	done := make(chan struct{})

	require.NoError(t, w.Enqueue("eligibility_notifier", func(ctx context.Context) error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued job did not run")
	}
	w.Shutdown()

	stats := w.GetStats()
	require.Len(t, stats.Scheduled, 1)
	assert.Equal(t, "eligibility_notifier", stats.Scheduled[0].Name)
	assert.Equal(t, int64(1), stats.Scheduled[0].Runs)
	assert.Equal(t, int64(1), stats.CompletedJobs)
}

func TestWorker_EnqueueAfterShutdownIsDropped(t *testing.T) {
	w := NewWorker(1)
	w.Shutdown()

	var ran atomic.Bool
	err := w.Enqueue("sweep", func(ctx context.Context) error { ran.Store(true); return nil })
	assert.ErrorIs(t, err, ErrStopped)
	w.EnqueueAsync(func(ctx context.Context) error { ran.Store(true); return nil })
	w.ScheduleEveryImmediate("sweep", time.Hour, func(ctx context.Context) error { ran.Store(true); return nil })
	assert.False(t, ran.Load())
	assert.Empty(t, w.GetStats().Scheduled)
}

func TestWorker_SubmitDuringShutdownDoesNotPanic(t *testing.T) {
	for round := 0; round < 20; round++ {
		w := NewWorker(2)
		start := make(chan struct{})
		var submitters sync.WaitGroup

		for i := 0; i < 8; i++ {
			submitters.Add(1)
			go func() {
				defer submitters.Done()
				<-start
				for j := 0; j < 50; j++ {
					_ = w.Enqueue("notify", func(ctx context.Context) error { return nil })
					w.EnqueueAsync(func(ctx context.Context) error { return nil })
				}
			}()
		}

		close(start)
		w.Shutdown()
		submitters.Wait()

		assert.Equal(t, 0, w.GetStats().ActiveJobs)
	}
}

func TestNextDailyRun(t *testing.T) {
	loc := time.UTC
	at := 2*time.Hour + 30*time.Minute

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before the slot", time.Date(2026, 3, 10, 1, 0, 0, 0, loc), time.Date(2026, 3, 10, 2, 30, 0, 0, loc)},
		{"exactly at the slot", time.Date(2026, 3, 10, 2, 30, 0, 0, loc), time.Date(2026, 3, 11, 2, 30, 0, 0, loc)},
		{"after the slot", time.Date(2026, 3, 10, 23, 59, 0, 0, loc), time.Date(2026, 3, 11, 2, 30, 0, 0, loc)},
		{"month rollover", time.Date(2026, 3, 31, 12, 0, 0, 0, loc), time.Date(2026, 4, 1, 2, 30, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextDailyRun(tt.now, at))
		})
	}
}

func TestWorker_ScheduleDailyRegistersCadence(t *testing.T) {
	w := NewWorker(1)
	w.ScheduleDaily("eligibility_notifier", 2*time.Hour+5*time.Minute, func(ctx context.Context) error { return nil })
	w.Shutdown()

	stats := w.GetStats()
	require.Len(t, stats.Scheduled, 1)
	assert.Equal(t, "daily at 02:05", stats.Scheduled[0].Interval)
	assert.Equal(t, int64(0), stats.Scheduled[0].Runs)
}
