package tasks

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/internal/jobs"
	"github.com/codecampus/campus-core/pkg/logger"
)

// Module provides the workflow gateway, the task tracker and the polling
// worker that executes submitted workflows.
var Module = fx.Module("tasks",
	fx.Provide(NewRepository),
	fx.Provide(newQueue),
	fx.Provide(NewEngine),
	fx.Provide(func(e *Engine) Gateway { return e }),
	fx.Provide(NewTracker),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(runWorker),
)

func newQueue(db bun.IDB, cfg *config.Config, log *slog.Logger) *jobs.Queue {
	qc := jobs.DefaultQueueConfig("workflows")
	qc.MaxAttempts = cfg.Tasks.MaxAttempts
	qc.BatchSize = cfg.Tasks.BatchSize
	return jobs.NewQueue(db, qc, log.With(logger.Scope("tasks.queue")))
}

// runWorker starts the polling worker with the server and stops it on
// shutdown, waiting for the in-flight batch.
func runWorker(lc fx.Lifecycle, engine *Engine, cfg *config.Config, log *slog.Logger) {
	wc := jobs.DefaultWorkerConfig("workflows")
	wc.PollInterval = cfg.Tasks.PollInterval
	wc.BatchSize = cfg.Tasks.BatchSize
	wc.StaleThresholdMinutes = cfg.Tasks.StaleThresholdMinutes

	worker := jobs.NewWorker(wc, log, engine.ProcessBatch)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if wc.RecoverStaleOnStart {
				if _, err := engine.RecoverStale(ctx, wc.StaleThresholdMinutes); err != nil {
					log.Warn("stale workflow recovery failed", logger.Error(err))
				}
			}
			return worker.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			return worker.Stop(ctx)
		},
	})
}
