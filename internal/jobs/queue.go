// Package jobs implements the durable execution engine behind the workflow
// gateway: a PostgreSQL-backed queue claimed with FOR UPDATE SKIP LOCKED,
// retried with exponential backoff, plus a polling worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/uptrace/bun"
)

// Status represents the state of a queued workflow.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// QueueConfig contains configuration for a job queue.
type QueueConfig struct {
	// TableName is the fully qualified table name.
	TableName string
	// MaxAttempts is the maximum number of attempts (0 = unlimited).
	MaxAttempts int
	// BaseRetryDelaySec is the base delay in seconds for retries.
	BaseRetryDelaySec int
	// MaxRetryDelaySec caps the retry delay.
	MaxRetryDelaySec int
	// BatchSize is the default number of rows claimed per dequeue.
	BatchSize int
}

// DefaultQueueConfig returns a QueueConfig with sensible defaults.
func DefaultQueueConfig(tableName string) QueueConfig {
	return QueueConfig{
		TableName:         tableName,
		MaxAttempts:       3,
		BaseRetryDelaySec: 60,
		MaxRetryDelaySec:  3600,
		BatchSize:         10,
	}
}

// Queue provides queue operations over a PostgreSQL table. Concurrent worker
// safety comes from FOR UPDATE SKIP LOCKED: multiple replicas can poll the
// same table without claiming the same row twice.
type Queue struct {
	db     bun.IDB
	config QueueConfig
	log    *slog.Logger
}

// NewQueue creates a queue with the given configuration.
func NewQueue(db bun.IDB, config QueueConfig, log *slog.Logger) *Queue {
	if config.BaseRetryDelaySec == 0 {
		config.BaseRetryDelaySec = 60
	}
	if config.MaxRetryDelaySec == 0 {
		config.MaxRetryDelaySec = 3600
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	return &Queue{
		db:     db,
		config: config,
		log:    log,
	}
}

// Dequeue atomically claims due rows in queueName for processing and returns
// their ids. An empty queueName claims from every queue.
func (q *Queue) Dequeue(ctx context.Context, queueName string, batchSize int) ([]string, error) {
	if batchSize <= 0 {
		batchSize = q.config.BatchSize
	}

	// Strategic SQL that cannot be expressed with Bun's query builder.
	query := fmt.Sprintf(`
		WITH cte AS (
			SELECT id FROM %s
			WHERE status='pending'
				AND (scheduled_at IS NULL OR scheduled_at <= now())
				AND ($2 = '' OR queue = $2)
			ORDER BY priority DESC, scheduled_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		UPDATE %s w
		SET status='processing', started_at=now(), updated_at=now()
		FROM cte WHERE w.id = cte.id
		RETURNING w.id`,
		q.config.TableName, q.config.TableName)

	var ids []string
	_, err := q.db.NewRaw(query, batchSize, queueName).Exec(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("dequeue failed: %w", err)
	}

	return ids, nil
}

// MarkCompleted records a terminal success and its result payload.
func (q *Queue) MarkCompleted(ctx context.Context, id string, result []byte) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'completed',
			result = $2,
			completed_at = now(),
			updated_at = now()
		WHERE id = $1`,
		q.config.TableName)

	if result == nil {
		result = []byte("null")
	}
	_, err := q.db.ExecContext(ctx, query, id, string(result))
	if err != nil {
		return fmt.Errorf("mark completed failed: %w", err)
	}

	return nil
}

// MarkFailed records a failed attempt. The row is re-queued with exponential
// backoff until MaxAttempts is reached, after which it fails permanently.
func (q *Queue) MarkFailed(ctx context.Context, id string, attemptCount int, errMsg string) error {
	attempt := attemptCount + 1

	if q.config.MaxAttempts > 0 && attempt >= q.config.MaxAttempts {
		query := fmt.Sprintf(`
			UPDATE %s
			SET status = 'failed',
				attempt_count = $2,
				last_error = $3,
				completed_at = now(),
				updated_at = now()
			WHERE id = $1`,
			q.config.TableName)

		_, err := q.db.ExecContext(ctx, query, id, attempt, truncateError(errMsg))
		if err != nil {
			return fmt.Errorf("mark failed (permanent) failed: %w", err)
		}

		q.log.Warn("workflow permanently failed after max attempts",
			slog.String("workflow_id", id),
			slog.Int("attempts", attempt),
			slog.String("error", errMsg))

		return nil
	}

	delay := backoffDelay(attempt, q.config.BaseRetryDelaySec, q.config.MaxRetryDelaySec)

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'pending',
			attempt_count = $2,
			last_error = $3,
			scheduled_at = now() + ($4 || ' seconds')::interval,
			updated_at = now()
		WHERE id = $1`,
		q.config.TableName)

	_, err := q.db.ExecContext(ctx, query, id, attempt, truncateError(errMsg), fmt.Sprintf("%d", int(delay.Seconds())))
	if err != nil {
		return fmt.Errorf("mark failed (retry) failed: %w", err)
	}

	q.log.Debug("workflow scheduled for retry",
		slog.String("workflow_id", id),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))

	return nil
}

// Cancel marks a pending row cancelled. Rows already claimed by a worker keep
// running to completion; the caller learns whether the cancel took effect.
func (q *Queue) Cancel(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'cancelled',
			completed_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		q.config.TableName)

	result, err := q.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("cancel failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel failed: %w", err)
	}
	return rows > 0, nil
}

// RecoverStale re-queues rows stuck in 'processing', typically after a crash
// mid-batch. Returns the number of rows recovered.
func (q *Queue) RecoverStale(ctx context.Context, staleThresholdMinutes int) (int, error) {
	if staleThresholdMinutes <= 0 {
		staleThresholdMinutes = 10
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'pending',
			started_at = NULL,
			scheduled_at = now(),
			updated_at = now()
		WHERE status = 'processing'
			AND started_at < now() - ($1 || ' minutes')::interval`,
		q.config.TableName)

	result, err := q.db.ExecContext(ctx, query, fmt.Sprintf("%d", staleThresholdMinutes))
	if err != nil {
		return 0, fmt.Errorf("recover stale workflows failed: %w", err)
	}

	count, _ := result.RowsAffected()

	if count > 0 {
		q.log.Warn("recovered stale workflows",
			slog.Int64("count", count),
			slog.Int("threshold_minutes", staleThresholdMinutes))
	}

	return int(count), nil
}

// Stats represents queue statistics.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
}

// GetStats returns queue statistics.
func (q *Queue) GetStats(ctx context.Context) (*Stats, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'processing') as processing,
			COUNT(*) FILTER (WHERE status = 'completed') as completed,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COUNT(*) FILTER (WHERE status = 'cancelled') as cancelled
		FROM %s`,
		q.config.TableName)

	stats := &Stats{}
	err := q.db.QueryRowContext(ctx, query).Scan(&stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed, &stats.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("get stats failed: %w", err)
	}

	return stats, nil
}

// backoffDelay computes the retry delay for an attempt: base * attempt^2,
// capped at max.
func backoffDelay(attempt, baseSec, maxSec int) time.Duration {
	delay := math.Min(
		float64(maxSec),
		float64(baseSec)*float64(attempt)*float64(attempt),
	)
	return time.Duration(delay) * time.Second
}

// truncateError truncates an error message to 500 characters.
func truncateError(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
