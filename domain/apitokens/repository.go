package apitokens

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
)

// Repository handles data access for API tokens.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new API token repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("apitokens.repo")),
	}
}

// Create inserts a new token record.
func (r *Repository) Create(ctx context.Context, token *ApiToken) error {
	_, err := r.db.NewInsert().Model(token).Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FindByHash returns an unrevoked token by its hash, or nil.
func (r *Repository) FindByHash(ctx context.Context, hash string) (*ApiToken, error) {
	token := new(ApiToken)
	err := r.db.NewSelect().Model(token).
		Where("token_hash = ?", hash).
		Where("revoked_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return token, nil
}

// ListByUser returns a user's tokens, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]ApiToken, error) {
	var out []ApiToken
	err := r.db.NewSelect().Model(&out).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}

// Revoke marks a token revoked if it belongs to the user.
func (r *Repository) Revoke(ctx context.Context, id, userID string) error {
	res, err := r.db.NewUpdate().Model((*ApiToken)(nil)).
		Set("revoked_at = now()").
		Set("version = version + 1").
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows == 0 {
		return apperror.NewNotFound("api token", id)
	}
	return nil
}

// RecordUse bumps last_used_at and usage_count. Fire and forget.
func (r *Repository) RecordUse(ctx context.Context, id string) {
	_, err := r.db.NewUpdate().Model((*ApiToken)(nil)).
		Set("last_used_at = now()").
		Set("usage_count = usage_count + 1").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Warn("token usage update failed", logger.Error(err), slog.String("token_id", id))
	}
}
