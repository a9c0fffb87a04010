package tasks

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
)

// Repository handles data access for workflows.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new workflows repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("tasks.repo")),
	}
}

// Create inserts a workflow row.
func (r *Repository) Create(ctx context.Context, w *Workflow) error {
	_, err := r.db.NewInsert().Model(w).Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FindByID returns a workflow by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*Workflow, error) {
	w := new(Workflow)
	err := r.db.NewSelect().Model(w).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("workflow", id)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return w, nil
}

// List returns workflows newest first, optionally filtered by state, with
// the unfiltered total.
func (r *Repository) List(ctx context.Context, limit, offset int, state TaskState) ([]Workflow, int, error) {
	var out []Workflow
	q := r.db.NewSelect().Model(&out)
	if state != "" {
		q = q.Where("status = ?", string(state))
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, 0, apperror.ErrDatabase.WithInternal(err)
	}

	err = q.OrderExpr("created_at DESC").Offset(offset).Limit(limit).Scan(ctx)
	if err != nil {
		return nil, 0, apperror.ErrDatabase.WithInternal(err)
	}
	return out, total, nil
}
