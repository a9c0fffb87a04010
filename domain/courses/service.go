package courses

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/domain/roles"
	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/permissions"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Service handles the course operations that do not fit the uniform CRUD
// shape: role assignment and submission group membership.
type Service struct {
	db     bun.IDB
	roles  *roles.Repository
	engine *permissions.Engine
	log    *slog.Logger
}

// NewService creates the courses service.
func NewService(db bun.IDB, rolesRepo *roles.Repository, engine *permissions.Engine, log *slog.Logger) *Service {
	return &Service{
		db:     db,
		roles:  rolesRepo,
		engine: engine,
		log:    log.With(logger.Scope("courses.svc")),
	}
}

// FindContent returns a content node by id.
func (s *Service) FindContent(ctx context.Context, contentID string) (*CourseContent, error) {
	cc := new(CourseContent)
	err := s.db.NewSelect().Model(cc).
		Where("id = ?", contentID).
		Where("archived_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("course content", contentID)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return cc, nil
}

// FindMember returns a course member by id.
func (s *Service) FindMember(ctx context.Context, memberID string) (*CourseMember, error) {
	cm := new(CourseMember)
	err := s.db.NewSelect().Model(cm).
		Where("id = ?", memberID).
		Where("archived_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("course member", memberID)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return cm, nil
}

// AssignRole changes a member's course role under the hierarchy rule: the
// actor must be at or above the role being assigned and strictly above the
// member's current role.
func (s *Service) AssignRole(ctx context.Context, p *rolemodel.Principal, memberID string, role rolemodel.CourseRole) (*CourseMember, error) {
	if !role.Valid() {
		return nil, apperror.NewValidation(apperror.FieldError{
			Field: "courseRole", Message: "unknown course role", Type: "oneof",
		})
	}

	member, err := s.FindMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if !p.IsAdmin {
		actorRole := p.HighestCourseRole(member.CourseID)
		if !rolemodel.CanAssignRole(actorRole, role, rolemodel.CourseRole(member.CourseRole)) {
			return nil, apperror.ErrForbidden.WithMessage("Insufficient course role for this assignment")
		}
	}

	if err := s.roles.AssignCourseRole(ctx, memberID, role); err != nil {
		return nil, err
	}
	s.engine.InvalidateUser(ctx, member.UserID)

	s.log.Info("course role assigned",
		slog.String("member_id", memberID),
		slog.String("course_id", member.CourseID),
		slog.String("role", string(role)),
	)
	return s.FindMember(ctx, memberID)
}

// AddGroupMember joins a course member into a submission group. The group row
// is locked so the size check and the insert are atomic; a member may hold at
// most one group per assignment.
func (s *Service) AddGroupMember(ctx context.Context, groupID, courseMemberID string, addedBy string) (*SubmissionGroupMember, error) {
	var added *SubmissionGroupMember
	err := database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		group := new(SubmissionGroup)
		err := tx.NewSelect().Model(group).
			Where("id = ?", groupID).
			Where("archived_at IS NULL").
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NewNotFound("submission group", groupID)
		}
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}

		count, err := tx.NewSelect().Model((*SubmissionGroupMember)(nil)).
			Where("submission_group_id = ?", groupID).
			Count(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		if count >= group.MaxGroupSize {
			return apperror.NewConflict("CONF_001", "Submission group is full")
		}

		// One group per member per assignment.
		exists, err := tx.NewSelect().Model((*SubmissionGroupMember)(nil)).
			Join("INNER JOIN submission_groups sg ON sg.id = sgm.submission_group_id").
			Where("sgm.course_member_id = ?", courseMemberID).
			Where("sg.course_content_id = ?", group.CourseContentID).
			Where("sg.archived_at IS NULL").
			Exists(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		if exists {
			return apperror.NewConflict("CONF_001", "Member already belongs to a group for this assignment")
		}

		member := &SubmissionGroupMember{
			SubmissionGroupID: groupID,
			CourseMemberID:    courseMemberID,
			CreatedBy:         &addedBy,
		}
		if _, err := tx.NewInsert().Model(member).Exec(ctx); err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		added = member
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveGroupMember removes a course member from a submission group.
func (s *Service) RemoveGroupMember(ctx context.Context, groupID, courseMemberID string) error {
	res, err := s.db.NewDelete().Model((*SubmissionGroupMember)(nil)).
		Where("submission_group_id = ?", groupID).
		Where("course_member_id = ?", courseMemberID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows == 0 {
		return apperror.NewNotFound("group member", courseMemberID)
	}
	return nil
}

// GroupCourseID resolves the course owning a submission group.
func (s *Service) GroupCourseID(ctx context.Context, groupID string) (string, error) {
	var courseID string
	err := s.db.NewRaw(`
		SELECT cc.course_id
		FROM submission_groups sg
		INNER JOIN course_contents cc ON cc.id = sg.course_content_id
		WHERE sg.id = ? AND sg.archived_at IS NULL
	`, groupID).Scan(ctx, &courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NewNotFound("submission group", groupID)
	}
	if err != nil {
		return "", apperror.ErrDatabase.WithInternal(err)
	}
	return courseID, nil
}

// CourseGroupCourseID resolves the course owning a course group.
func (s *Service) CourseGroupCourseID(ctx context.Context, groupID string) (string, error) {
	var courseID string
	err := s.db.NewSelect().Model((*CourseGroup)(nil)).
		Column("course_id").
		Where("id = ?", groupID).
		Scan(ctx, &courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NewNotFound("course group", groupID)
	}
	if err != nil {
		return "", apperror.ErrDatabase.WithInternal(err)
	}
	return courseID, nil
}

// IsOrganizationMember reports whether the user holds a membership in any
// course under the organization.
func (s *Service) IsOrganizationMember(ctx context.Context, organizationID, userID string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*CourseMember)(nil)).
		Join("INNER JOIN courses c ON c.id = cm.course_id").
		Join("INNER JOIN course_families cf ON cf.id = c.course_family_id").
		Where("cm.user_id = ?", userID).
		Where("cf.organization_id = ?", organizationID).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}

// IsFamilyMember reports whether the user holds a membership in any course of
// the course family.
func (s *Service) IsFamilyMember(ctx context.Context, familyID, userID string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*CourseMember)(nil)).
		Join("INNER JOIN courses c ON c.id = cm.course_id").
		Where("cm.user_id = ?", userID).
		Where("c.course_family_id = ?", familyID).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}

// IsGroupMember reports whether the user belongs to the submission group.
func (s *Service) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*SubmissionGroupMember)(nil)).
		Join("INNER JOIN course_members cm ON cm.id = sgm.course_member_id").
		Where("sgm.submission_group_id = ?", groupID).
		Where("cm.user_id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}
