package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_EnqueueRecordsTaskHistory(t *testing.T) {
	w := NewWorker(2, time.UTC)
	defer w.Shutdown()

	done := make(chan struct{}, 2)
	w.Enqueue("live_projection", func(ctx context.Context) error {
		done <- struct{}{}
		return nil
	})
	w.Enqueue("aging_scan", func(ctx context.Context) error {
		done <- struct{}{}
		return errors.New("sin conexión")
	})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task did not run")
		}
	}
	assert.Eventually(t, func() bool {
		s := w.GetStats()
		return s.CompletedJobs == 2 && s.ActiveJobs == 0
	}, 2*time.Second, 10*time.Millisecond)

	stats := w.GetStats()
	assert.Equal(t, int64(1), stats.FailedJobs)
	assert.Equal(t, 2, stats.MaxConcurrent)
	require.Len(t, stats.Tasks, 2)

	aging := stats.Tasks[0]
	assert.Equal(t, "aging_scan", aging.Name)
	assert.Equal(t, int64(1), aging.Failures)
	assert.Equal(t, "sin conexión", aging.LastError)
	assert.NotNil(t, aging.LastRun)

	live := stats.Tasks[1]
	assert.Equal(t, "live_projection", live.Name)
	assert.Zero(t, live.Failures)
	assert.Empty(t, live.LastError)
}

func TestWorker_ScheduleEveryImmediate(t *testing.T) {
	w := NewWorker(1, nil)
	defer w.Shutdown()

	ran := make(chan struct{}, 1)
	w.ScheduleEveryImmediate("live_projection", time.Hour, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task did not run at startup")
	}
}

func TestWorker_PanicCountsAsFailure(t *testing.T) {
	w := NewWorker(1, nil)
	defer w.Shutdown()

	w.ScheduleEveryImmediate("flaky", time.Hour, func(ctx context.Context) error {
		panic("fallo")
	})
	assert.Eventually(t, func() bool {
		s := w.GetStats()
		return s.FailedJobs == 1 && len(s.Tasks) == 1 && s.Tasks[0].LastError == "panic: fallo"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_ScheduleCron(t *testing.T) {
	w := NewWorker(1, time.UTC)
	defer w.Shutdown()

	require.NoError(t, w.ScheduleCron("aging_scan", "0 7 * * *", func(ctx context.Context) error { return nil }))

	err := w.ScheduleCron("aging_scan", "cada mañana", func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron spec")
}
