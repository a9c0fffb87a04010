package courses

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/internal/crud"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/cache"
	"github.com/codecampus/campus-core/pkg/permissions"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// CourseController is the CRUD surface for courses.
type CourseController = crud.Controller[Course, CreateCourseRequest, UpdateCourseRequest]

// ContentController is the CRUD surface for course contents.
type ContentController = crud.Controller[CourseContent, CreateContentRequest, UpdateContentRequest]

// MemberController is the CRUD surface for course members.
type MemberController = crud.Controller[CourseMember, CreateMemberRequest, UpdateMemberRequest]

// GroupController is the CRUD surface for submission groups.
type GroupController = crud.Controller[SubmissionGroup, CreateGroupRequest, UpdateGroupRequest]

// NewCourseController wires courses into the dispatcher. Creation is
// admin-only; members reach their own courses for reads.
func NewCourseController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
) *CourseController {
	desc := crud.Descriptor[Course, CreateCourseRequest, UpdateCourseRequest]{
		Resource: "courses",
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateCourseRequest) (*Course, error) {
			return &Course{
				CourseFamilyID: req.CourseFamilyID,
				Name:           req.Name,
				Term:           req.Term,
				Properties:     req.Properties,
			}, nil
		},
		ApplyUpdate: func(course *Course, req *UpdateCourseRequest) error {
			if req.Name != nil {
				course.Name = *req.Name
			}
			if req.Term != nil {
				course.Term = req.Term
			}
			if req.Properties != nil {
				course.Properties = req.Properties
			}
			return nil
		},
		ToDTO: func(course *Course) any { return course },
		ID:    func(course *Course) string { return course.ID },
		FilterColumns: map[string]string{
			"course_family_id": "course_family_id",
			"term":             "term",
			"name":             "name",
		},
		DefaultOrder: "name ASC",
		SoftDelete:   true,
	}
	return crud.NewController(db, engine, c, events, log, desc)
}

// NewContentController wires course contents into the dispatcher.
func NewContentController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
) *ContentController {
	desc := crud.Descriptor[CourseContent, CreateContentRequest, UpdateContentRequest]{
		Resource: "course-contents",
		GuardCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateContentRequest) error {
			if err := ValidatePath(req.Path); err != nil {
				return err
			}
			if !p.HasCourseRole(req.CourseID, rolemodel.RoleLecturer) {
				return apperror.ErrForbidden
			}
			return nil
		},
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateContentRequest) (*CourseContent, error) {
			maxSize := req.MaxGroupSize
			if maxSize == 0 {
				maxSize = 1
			}
			return &CourseContent{
				CourseID:     req.CourseID,
				Path:         req.Path,
				Title:        req.Title,
				Kind:         req.Kind,
				ContentType:  req.ContentType,
				MaxGroupSize: maxSize,
				Position:     req.Position,
				Properties:   req.Properties,
			}, nil
		},
		ApplyUpdate: func(cc *CourseContent, req *UpdateContentRequest) error {
			if req.Title != nil {
				cc.Title = *req.Title
			}
			if req.MaxGroupSize != nil {
				cc.MaxGroupSize = *req.MaxGroupSize
			}
			if req.Position != nil {
				cc.Position = *req.Position
			}
			if req.Properties != nil {
				cc.Properties = req.Properties
			}
			return nil
		},
		ToDTO: func(cc *CourseContent) any { return cc },
		ID:    func(cc *CourseContent) string { return cc.ID },
		FilterColumns: map[string]string{
			"course_id": "course_id",
			"kind":      "kind",
			"path":      "path",
		},
		DefaultOrder: "course_id ASC, position ASC, path ASC",
		SoftDelete:   true,
	}
	return crud.NewController(db, engine, c, events, log, desc)
}

// NewMemberController wires course members into the dispatcher. Enrollment
// respects the role assignment rule; role changes after enrollment go through
// the dedicated endpoint.
func NewMemberController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
) *MemberController {
	desc := crud.Descriptor[CourseMember, CreateMemberRequest, UpdateMemberRequest]{
		Resource: "course-members",
		GuardCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateMemberRequest) error {
			role := rolemodel.CourseRole(req.CourseRole)
			if !role.Valid() {
				return apperror.NewValidation(apperror.FieldError{
					Field: "courseRole", Message: "unknown course role", Type: "oneof",
				})
			}
			if p.IsAdmin {
				return nil
			}
			if !p.HasCourseRole(req.CourseID, rolemodel.RoleLecturer) {
				return apperror.ErrForbidden
			}
			if !rolemodel.CanAssignRole(p.HighestCourseRole(req.CourseID), role, "") {
				return apperror.ErrForbidden.WithMessage("Insufficient course role for this assignment")
			}
			return nil
		},
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateMemberRequest) (*CourseMember, error) {
			return &CourseMember{
				CourseID:    req.CourseID,
				UserID:      req.UserID,
				CourseRole:  req.CourseRole,
				CourseGroup: req.CourseGroup,
			}, nil
		},
		ApplyUpdate: func(cm *CourseMember, req *UpdateMemberRequest) error {
			if req.CourseGroup != nil {
				cm.CourseGroup = req.CourseGroup
			}
			return nil
		},
		ToDTO: func(cm *CourseMember) any { return cm },
		ID:    func(cm *CourseMember) string { return cm.ID },
		FilterColumns: map[string]string{
			"course_id":    "course_id",
			"user_id":      "user_id",
			"course_role":  "course_role",
			"course_group": "course_group",
		},
		DefaultOrder: "course_id ASC, created_at ASC",
		SoftDelete:   true,
		PostCreate: []func(ctx context.Context, cm *CourseMember) error{
			func(ctx context.Context, cm *CourseMember) error {
				// A fresh membership changes what the user may reach.
				engine.InvalidateUser(ctx, cm.UserID)
				return nil
			},
		},
	}
	return crud.NewController(db, engine, c, events, log, desc)
}

// NewGroupController wires submission groups into the dispatcher. Staff see
// the course's groups; students fall back to the groups they belong to.
func NewGroupController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
	svc *Service,
) *GroupController {
	desc := crud.Descriptor[SubmissionGroup, CreateGroupRequest, UpdateGroupRequest]{
		Resource: "submission-groups",
		GuardList: func(ec echo.Context, p *rolemodel.Principal, f permissions.Filter) (permissions.Filter, error) {
			if !f.Forbidden {
				return f, nil
			}
			userID := p.UserID
			return permissions.CustomFilter(func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where(`sg.id IN (
					SELECT sgm.submission_group_id FROM submission_group_members sgm
					INNER JOIN course_members cm ON cm.id = sgm.course_member_id
					WHERE cm.user_id = ?)`, userID)
			}), nil
		},
		GuardCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateGroupRequest) error {
			content, err := svc.FindContent(ctx, req.CourseContentID)
			if err != nil {
				return err
			}
			if !p.HasCourseRole(content.CourseID, rolemodel.RoleTutor) {
				return apperror.ErrForbidden
			}
			return nil
		},
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateGroupRequest) (*SubmissionGroup, error) {
			maxSize := req.MaxGroupSize
			if maxSize == 0 {
				content, err := svc.FindContent(ctx, req.CourseContentID)
				if err != nil {
					return nil, err
				}
				maxSize = content.MaxGroupSize
			}
			return &SubmissionGroup{
				CourseContentID: req.CourseContentID,
				Name:            req.Name,
				MaxGroupSize:    maxSize,
				MaxSubmissions:  req.MaxSubmissions,
				MaxTestRuns:     req.MaxTestRuns,
			}, nil
		},
		ApplyUpdate: func(sg *SubmissionGroup, req *UpdateGroupRequest) error {
			if req.Name != nil {
				sg.Name = req.Name
			}
			if req.MaxGroupSize != nil {
				sg.MaxGroupSize = *req.MaxGroupSize
			}
			if req.MaxSubmissions != nil {
				sg.MaxSubmissions = req.MaxSubmissions
			}
			if req.MaxTestRuns != nil {
				sg.MaxTestRuns = req.MaxTestRuns
			}
			return nil
		},
		ToDTO: func(sg *SubmissionGroup) any { return sg },
		ID:    func(sg *SubmissionGroup) string { return sg.ID },
		FilterColumns: map[string]string{
			"course_content_id": "course_content_id",
		},
		DefaultOrder: "created_at ASC",
		SoftDelete:   true,
	}
	return crud.NewController(db, engine, c, events, log, desc)
}
