// Package main provides the entry point for the Campus Core API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/codecampus/campus-core/domain/apitokens"
	"github.com/codecampus/campus-core/domain/courses"
	"github.com/codecampus/campus-core/domain/health"
	"github.com/codecampus/campus-core/domain/messages"
	"github.com/codecampus/campus-core/domain/organizations"
	"github.com/codecampus/campus-core/domain/realtime"
	"github.com/codecampus/campus-core/domain/roles"
	"github.com/codecampus/campus-core/domain/scheduler"
	"github.com/codecampus/campus-core/domain/sessions"
	"github.com/codecampus/campus-core/domain/submissions"
	"github.com/codecampus/campus-core/domain/tasks"
	"github.com/codecampus/campus-core/domain/users"
	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/internal/redis"
	"github.com/codecampus/campus-core/internal/server"
	"github.com/codecampus/campus-core/internal/storage"
	"github.com/codecampus/campus-core/pkg/auth"
	"github.com/codecampus/campus-core/pkg/cache"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/password"
	"github.com/codecampus/campus-core/pkg/permissions"
)

func main() {
	// Load .env files if present (for local development). Load() keeps
	// existing vars, Overload() lets local values take precedence.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		redis.Module,
		server.Module,
		storage.Module,

		// Cross-cutting modules
		cache.Module,
		password.Module,
		permissions.Module,
		auth.Module,

		// Domain modules
		health.Module,
		users.Module,
		roles.Module,
		sessions.Module,
		apitokens.Module,
		organizations.Module,
		courses.Module,
		submissions.Module,
		tasks.Module,
		messages.Module,
		realtime.Module,
		scheduler.Module,
	).Run()
}
