package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSchedulerRunsIntervalTask(t *testing.T) {
	s := newTestScheduler()

	var runs atomic.Int64
	require.NoError(t, s.AddIntervalTask("tick", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSchedulerReplaceAndRemove(t *testing.T) {
	s := newTestScheduler()

	noop := func(ctx context.Context) error { return nil }
	require.NoError(t, s.AddIntervalTask("job", time.Hour, noop))
	require.NoError(t, s.AddIntervalTask("job", time.Minute, noop))
	assert.Equal(t, []string{"job"}, s.ListTasks())

	s.RemoveTask("job")
	assert.Empty(t, s.ListTasks())
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler()
	err := s.AddCronTask("bad", "not a schedule", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	s := newTestScheduler()
	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
}
