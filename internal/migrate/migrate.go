// Package migrate runs the embedded SQL migrations with Goose.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/migrations"
	"github.com/codecampus/campus-core/pkg/logger"
)

// Module provides the migrator.
var Module = fx.Module("migrate",
	fx.Provide(NewMigrator),
)

// Migrator applies and rolls back the schema migrations.
type Migrator struct {
	db  *bun.DB
	log *slog.Logger
}

// NewMigrator creates a migrator over the shared bun connection.
func NewMigrator(db *bun.DB, log *slog.Logger) *Migrator {
	return &Migrator{db: db, log: log.With(logger.Scope("migrate"))}
}

func (m *Migrator) setup() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}
	m.log.Info("applying migrations")
	if err := goose.UpContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, m.db.DB)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	m.log.Info("migrations applied", slog.Int64("version", version))
	return nil
}

// UpTo applies migrations up to and including version.
func (m *Migrator) UpTo(ctx context.Context, version int64) error {
	if err := m.setup(); err != nil {
		return err
	}
	m.log.Info("applying migrations", slog.Int64("target", version))
	if err := goose.UpToContext(ctx, m.db.DB, ".", version); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}
	m.log.Info("rolling back one migration")
	if err := goose.DownContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	return nil
}

// Status prints the state of every known migration.
func (m *Migrator) Status(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}

// Version returns the current database schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := m.setup(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, m.db.DB)
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return version, nil
}
