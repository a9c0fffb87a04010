package scheduler

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/codecampus/campus-core/domain/sessions"
	"github.com/codecampus/campus-core/domain/tasks"
	"github.com/codecampus/campus-core/internal/config"
)

// Module provides the periodic maintenance jobs.
var Module = fx.Module("scheduler",
	fx.Provide(
		NewConfig,
		NewScheduler,
	),
	fx.Invoke(
		RegisterTasks,
		RegisterLifecycle,
	),
)

// TaskParams bundles the dependencies of the registered jobs.
type TaskParams struct {
	fx.In

	Scheduler *Scheduler
	Sessions  *sessions.Service
	Engine    *tasks.Engine
	AppConfig *config.Config
	Cfg       *Config
	Log       *slog.Logger
}

// RegisterTasks wires the maintenance jobs into the scheduler.
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	if err := p.Scheduler.AddIntervalTask("session_cleanup", p.Cfg.SessionCleanupInterval,
		func(ctx context.Context) error {
			p.Sessions.CleanupTerminal(ctx)
			return nil
		}); err != nil {
		return err
	}

	staleMinutes := p.AppConfig.Tasks.StaleThresholdMinutes
	if err := p.Scheduler.AddIntervalTask("stale_workflow_recovery", p.Cfg.StaleWorkflowInterval,
		func(ctx context.Context) error {
			_, err := p.Engine.RecoverStale(ctx, staleMinutes)
			return err
		}); err != nil {
		return err
	}

	return nil
}

// RegisterLifecycle starts and stops the scheduler with the process.
func RegisterLifecycle(lc fx.Lifecycle, s *Scheduler, cfg *Config) {
	if !cfg.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
