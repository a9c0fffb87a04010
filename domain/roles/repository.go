package roles

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Repository resolves role assignments into Principals.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new roles repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("roles.repo")),
	}
}

type userRoleRow struct {
	RoleName string `bun:"role_name"`
}

type claimRow struct {
	Resource string `bun:"resource"`
	Action   string `bun:"action"`
}

type courseRoleRow struct {
	CourseID   string `bun:"course_id"`
	CourseRole string `bun:"course_role"`
	Level      int    `bun:"level"`
}

// ResolvePrincipal loads global roles, claims and course memberships for a
// user and assembles the in-memory Principal.
func (r *Repository) ResolvePrincipal(ctx context.Context, userID string) (*rolemodel.Principal, error) {
	p := rolemodel.NewPrincipal(userID)

	var roleRows []userRoleRow
	err := r.db.NewRaw(`
		SELECT r.name AS role_name
		FROM user_roles ur
		INNER JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ? AND r.archived_at IS NULL
	`, userID).Scan(ctx, &roleRows)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	for _, row := range roleRows {
		if row.RoleName == rolemodel.SystemRoleAdmin {
			p.IsAdmin = true
		}
	}

	var claims []claimRow
	err = r.db.NewRaw(`
		SELECT rc.resource, rc.action
		FROM role_claims rc
		INNER JOIN user_roles ur ON ur.role_id = rc.role_id
		WHERE ur.user_id = ? AND rc.allowed
	`, userID).Scan(ctx, &claims)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	for _, c := range claims {
		p.GeneralClaims[rolemodel.Claim{Resource: c.Resource, Action: c.Action}] = struct{}{}
	}

	// Highest role per course; archived memberships do not count.
	var courseRows []courseRoleRow
	err = r.db.NewRaw(`
		SELECT DISTINCT ON (cm.course_id) cm.course_id, cm.course_role, cr.level
		FROM course_members cm
		INNER JOIN course_roles cr ON cr.name = cm.course_role
		WHERE cm.user_id = ? AND cm.archived_at IS NULL
		ORDER BY cm.course_id, cr.level DESC
	`, userID).Scan(ctx, &courseRows)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	for _, row := range courseRows {
		p.CourseRoles[row.CourseID] = rolemodel.CourseRole(row.CourseRole)
	}

	return p, nil
}

// AssignCourseRole records a course role change after the hierarchy rule has
// been checked by the caller.
func (r *Repository) AssignCourseRole(ctx context.Context, memberID string, role rolemodel.CourseRole) error {
	res, err := r.db.NewUpdate().
		Table("course_members").
		Set("course_role = ?", string(role)).
		Set("updated_at = now()").
		Set("version = version + 1").
		Where("id = ?", memberID).
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
		return apperror.NewNotFound("course member", memberID)
	}
	return nil
}
