package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerStartStop(t *testing.T) {
	var polls atomic.Int64
	w := NewWorker(WorkerConfig{
		Name:         "test",
		PollInterval: 5 * time.Millisecond,
	}, slog.Default(), func(ctx context.Context) error {
		polls.Add(1)
		return nil
	})

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	assert.Eventually(t, func() bool {
		return polls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop(context.Background()))
	assert.False(t, w.IsRunning())

	// Stopping twice is a no-op.
	require.NoError(t, w.Stop(context.Background()))
}

func TestWorkerPollsImmediately(t *testing.T) {
	var polls atomic.Int64
	w := NewWorker(WorkerConfig{
		Name:         "test",
		PollInterval: time.Hour,
	}, slog.Default(), func(ctx context.Context) error {
		polls.Add(1)
		return nil
	})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	// The leading poll must not wait for the first tick.
	assert.Eventually(t, func() bool {
		return polls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerStopWaitsForBatch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	w := NewWorker(WorkerConfig{
		Name:         "test",
		PollInterval: time.Hour,
	}, slog.Default(), func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	})

	require.NoError(t, w.Start(context.Background()))
	<-entered

	stopped := make(chan struct{})
	go func() {
		_ = w.Stop(context.Background())
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a batch was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the batch finished")
	}
}
