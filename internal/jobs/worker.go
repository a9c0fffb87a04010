package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/codecampus/campus-core/pkg/logger"
)

var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_polls_total",
		Help: "Completed poll cycles per worker.",
	}, []string{"worker"})

	pollFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_poll_failures_total",
		Help: "Poll cycles that returned an error, per worker.",
	}, []string{"worker"})
)

// WorkerConfig contains configuration for a background worker.
type WorkerConfig struct {
	// Name is a descriptive name for the worker (for logging and metrics).
	Name string
	// PollInterval is how often to poll for claimable work (default: 5s).
	PollInterval time.Duration
	// BatchSize is the number of rows to claim per poll (default: 10).
	BatchSize int
	// StaleThresholdMinutes is how long a row may sit in 'processing'
	// before it is considered abandoned (default: 10).
	StaleThresholdMinutes int
	// RecoverStaleOnStart re-queues abandoned rows when the worker starts.
	RecoverStaleOnStart bool
}

// DefaultWorkerConfig returns a WorkerConfig with sensible defaults.
func DefaultWorkerConfig(name string) WorkerConfig {
	return WorkerConfig{
		Name:                  name,
		PollInterval:          5 * time.Second,
		BatchSize:             10,
		StaleThresholdMinutes: 10,
		RecoverStaleOnStart:   true,
	}
}

// Worker polls a queue and hands each claimed batch to a process callback.
// Stop waits for the in-flight batch before returning, so a graceful server
// shutdown never abandons half-processed rows.
type Worker struct {
	config    WorkerConfig
	log       *slog.Logger
	process   func(ctx context.Context) error
	stopCh    chan struct{}
	stoppedCh chan struct{}
	running   bool
	mu        sync.Mutex
}

// NewWorker creates a background worker.
func NewWorker(config WorkerConfig, log *slog.Logger, process func(ctx context.Context) error) *Worker {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.StaleThresholdMinutes == 0 {
		config.StaleThresholdMinutes = 10
	}

	return &Worker{
		config:    config,
		log:       log.With(slog.String("worker", config.Name)),
		process:   process,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins the polling loop. The first poll runs immediately so work
// queued while the server was down is picked up without waiting a full
// interval.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	w.mu.Unlock()

	w.log.Info("worker starting",
		slog.Duration("poll_interval", w.config.PollInterval),
		slog.Int("batch_size", w.config.BatchSize))

	go w.run(ctx)
	return nil
}

// Stop gracefully stops the worker, waiting for the current batch.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	select {
	case <-w.stoppedCh:
		w.log.Info("worker stopped")
	case <-ctx.Done():
		w.log.Warn("worker stop timed out, abandoning in-flight batch")
	}
	return nil
}

// IsRunning reports whether the polling loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll runs one cycle unless a stop is already in progress.
func (w *Worker) poll(ctx context.Context) {
	select {
	case <-w.stopCh:
		return
	case <-ctx.Done():
		return
	default:
	}

	pollsTotal.WithLabelValues(w.config.Name).Inc()
	if err := w.process(ctx); err != nil {
		pollFailures.WithLabelValues(w.config.Name).Inc()
		w.log.Warn("poll cycle failed", logger.Error(err))
	}
}
