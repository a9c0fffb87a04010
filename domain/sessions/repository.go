package sessions

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
)

// Repository handles data access for sessions.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new sessions repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("sessions.repo")),
	}
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *Session) error {
	_, err := r.db.NewInsert().Model(s).Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FindBySID returns a session by its device id.
func (r *Repository) FindBySID(ctx context.Context, sid string) (*Session, error) {
	s := new(Session)
	err := r.db.NewSelect().Model(s).Where("sid = ?", sid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("session", sid)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return s, nil
}

// FindByRefreshHash returns the session currently holding the refresh hash.
func (r *Repository) FindByRefreshHash(ctx context.Context, hash string) (*Session, error) {
	s := new(Session)
	err := r.db.NewSelect().Model(s).Where("refresh_token_hash = ?", hash).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return s, nil
}

// ListByUser returns the user's sessions, active first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	var out []Session
	err := r.db.NewSelect().Model(&out).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Where("ended_at IS NULL").
		Where("expires_at > now()").
		OrderExpr("last_seen_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}

// Rotate swaps the refresh hash and access expiry under a row lock, bumping
// the refresh counter.
func (r *Repository) Rotate(ctx context.Context, sessionID, newAccessHash, newRefreshHash string, expiresAt time.Time, refreshExpiresAt time.Time) error {
	return database.RunInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*Session)(nil)).
			Set("session_id = ?", newAccessHash).
			Set("refresh_token_hash = ?", newRefreshHash).
			Set("expires_at = ?", expiresAt).
			Set("refresh_expires_at = ?", refreshExpiresAt).
			Set("refresh_counter = refresh_counter + 1").
			Set("last_seen_at = now()").
			Set("version = version + 1").
			Where("id = ?", sessionID).
			Where("revoked_at IS NULL").
			Where("ended_at IS NULL").
			Exec(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		if rows == 0 {
			return apperror.ErrTokenExpired
		}
		return nil
	})
}

// Touch records activity on a session.
func (r *Repository) Touch(ctx context.Context, sessionID, ip string) {
	_, err := r.db.NewUpdate().Model((*Session)(nil)).
		Set("last_seen_at = now()").
		Set("ip_last_seen = ?", ip).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		r.log.Warn("session touch failed", logger.Error(err), slog.String("session_id", sessionID))
	}
}

// Revoke marks a session revoked. The refresh hash is cleared so the token
// can never rotate again.
func (r *Repository) Revoke(ctx context.Context, sessionID string) error {
	res, err := r.db.NewUpdate().Model((*Session)(nil)).
		Set("revoked_at = now()").
		Set("refresh_token_hash = NULL").
		Set("version = version + 1").
		Where("id = ?", sessionID).
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
		return apperror.NewNotFound("session", sessionID)
	}
	return nil
}

// End marks a session ended by an explicit logout.
func (r *Repository) End(ctx context.Context, sessionID string) error {
	_, err := r.db.NewUpdate().Model((*Session)(nil)).
		Set("ended_at = now()").
		Set("refresh_token_hash = NULL").
		Set("version = version + 1").
		Where("id = ?", sessionID).
		Where("ended_at IS NULL").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// RevokeAllForUser revokes every active session of a user, optionally keeping
// one session alive.
func (r *Repository) RevokeAllForUser(ctx context.Context, userID, exceptSessionID string) (int64, error) {
	q := r.db.NewUpdate().Model((*Session)(nil)).
		Set("revoked_at = now()").
		Set("refresh_token_hash = NULL").
		Set("version = version + 1").
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Where("ended_at IS NULL")
	if exceptSessionID != "" {
		q = q.Where("id != ?", exceptSessionID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

// DeleteTerminal removes sessions that have been expired, revoked or ended
// for longer than the retention window.
func (r *Repository) DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := r.db.NewDelete().Model((*Session)(nil)).
		Where("expires_at < ? OR revoked_at < ? OR ended_at < ?", cutoff, cutoff, cutoff).
		Exec(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}
