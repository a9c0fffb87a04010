package users

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
)

// Repository handles data access for users and their external accounts.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new users repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("users.repo")),
	}
}

// FindByID returns a user by id. Archived users are not found.
func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	user := new(User)
	err := r.db.NewSelect().Model(user).
		Where("u.id = ?", id).
		Where("u.archived_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user", id)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return user, nil
}

// FindByUsername returns a user by username, including the password hash.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	user := new(User)
	err := r.db.NewSelect().Model(user).
		Where("u.username = ?", username).
		Where("u.archived_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user", username)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return user, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user *User) error {
	err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(user).Exec(ctx)
		return err
	})
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// UpdatePassword replaces the stored hash and reset flag.
func (r *Repository) UpdatePassword(ctx context.Context, userID string, hash *string, resetRequired bool) error {
	res, err := r.db.NewUpdate().Model((*User)(nil)).
		Set("password_hash = ?", hash).
		Set("password_reset_required = ?", resetRequired).
		Set("updated_at = now()").
		Set("version = version + 1").
		Where("id = ?", userID).
		Where("archived_at IS NULL").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows == 0 {
		return apperror.NewNotFound("user", userID)
	}
	return nil
}

// FindAccount returns the local user linked to an external identity, or nil
// when the identity has never been seen.
func (r *Repository) FindAccount(ctx context.Context, provider, providerAccountID string) (*User, error) {
	user := new(User)
	err := r.db.NewSelect().Model(user).
		Join("INNER JOIN accounts AS a ON a.user_id = u.id").
		Where("a.provider = ?", provider).
		Where("a.provider_account_id = ?", providerAccountID).
		Where("u.archived_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return user, nil
}

// CreateWithAccount inserts a user and its external account link atomically.
func (r *Repository) CreateWithAccount(ctx context.Context, user *User, account *Account) error {
	err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return err
		}
		account.UserID = user.ID
		_, err := tx.NewInsert().Model(account).Exec(ctx)
		return err
	})
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// UsernameTaken reports whether a username is already in use.
func (r *Repository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	exists, err := r.db.NewSelect().Model((*User)(nil)).
		Where("username = ?", username).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}

// FindServiceBySlug returns the service descriptor for a slug, or nil.
func (r *Repository) FindServiceBySlug(ctx context.Context, slug string) (*ServiceAccount, error) {
	svc := new(ServiceAccount)
	err := r.db.NewSelect().Model(svc).Where("slug = ?", slug).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return svc, nil
}

// CreateService inserts a service user plus its descriptor atomically.
func (r *Repository) CreateService(ctx context.Context, user *User, svc *ServiceAccount) error {
	err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return err
		}
		svc.UserID = user.ID
		_, err := tx.NewInsert().Model(svc).Exec(ctx)
		return err
	})
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// TouchService updates a service account's last_seen_at.
func (r *Repository) TouchService(ctx context.Context, userID string) error {
	_, err := r.db.NewUpdate().Model((*ServiceAccount)(nil)).
		Set("last_seen_at = now()").
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
