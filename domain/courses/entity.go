package courses

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Course is one iteration of a course family, e.g. a semester.
type Course struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID             string          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version        int64           `bun:"version,notnull,default:0" json:"version"`
	CourseFamilyID string          `bun:"course_family_id,notnull,type:uuid" json:"courseFamilyId"`
	Name           string          `bun:"name,notnull" json:"name"`
	Term           *string         `bun:"term" json:"term,omitempty"`
	Properties     json.RawMessage `bun:"properties,type:jsonb,default:'{}'" json:"properties,omitempty"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy      *string         `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy      *string         `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt     *time.Time      `bun:"archived_at" json:"archivedAt,omitempty"`
}

// CourseContent is a node in the course's content tree (units, assignments).
// Path is a dot-separated materialized path; the parent is the path minus its
// last segment.
type CourseContent struct {
	bun.BaseModel `bun:"table:course_contents,alias:cc"`

	ID           string          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version      int64           `bun:"version,notnull,default:0" json:"version"`
	CourseID     string          `bun:"course_id,notnull,type:uuid" json:"courseId"`
	Path         string          `bun:"path,notnull" json:"path"`
	Title        string          `bun:"title,notnull" json:"title"`
	Kind         string          `bun:"kind,notnull" json:"kind"`
	ContentType  string          `bun:"content_type,notnull" json:"contentType"`
	MaxGroupSize int             `bun:"max_group_size,notnull,default:1" json:"maxGroupSize"`
	Position     int             `bun:"position,notnull,default:0" json:"position"`
	Properties   json.RawMessage `bun:"properties,type:jsonb,default:'{}'" json:"properties,omitempty"`
	CreatedAt    time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt    time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy    *string         `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy    *string         `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt   *time.Time      `bun:"archived_at" json:"archivedAt,omitempty"`
}

// CourseMember binds a user to a course with a course role and an optional
// group label.
type CourseMember struct {
	bun.BaseModel `bun:"table:course_members,alias:cm"`

	ID          string     `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version     int64      `bun:"version,notnull,default:0" json:"version"`
	CourseID    string     `bun:"course_id,notnull,type:uuid" json:"courseId"`
	UserID      string     `bun:"user_id,notnull,type:uuid" json:"userId"`
	CourseRole  string     `bun:"course_role,notnull" json:"courseRole"`
	CourseGroup *string    `bun:"course_group" json:"courseGroup,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy   *string    `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy   *string    `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt  *time.Time `bun:"archived_at" json:"archivedAt,omitempty"`
}

// CourseGroup is a named partition of a course, e.g. an exercise slot.
// Members carry the group name as a label; the row exists so the group can
// be addressed by id.
type CourseGroup struct {
	bun.BaseModel `bun:"table:course_groups,alias:cg"`

	ID        string    `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version   int64     `bun:"version,notnull,default:0" json:"version"`
	CourseID  string    `bun:"course_id,notnull,type:uuid" json:"courseId"`
	Name      string    `bun:"name,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// SubmissionGroup bundles course members per assignment. Limits are copied
// from the content at creation and may be tightened per group.
type SubmissionGroup struct {
	bun.BaseModel `bun:"table:submission_groups,alias:sg"`

	ID              string     `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version         int64      `bun:"version,notnull,default:0" json:"version"`
	CourseContentID string     `bun:"course_content_id,notnull,type:uuid" json:"courseContentId"`
	Name            *string    `bun:"name" json:"name,omitempty"`
	MaxGroupSize    int        `bun:"max_group_size,notnull,default:1" json:"maxGroupSize"`
	MaxSubmissions  *int       `bun:"max_submissions" json:"maxSubmissions,omitempty"`
	MaxTestRuns     *int       `bun:"max_test_runs" json:"maxTestRuns,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy       *string    `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy       *string    `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt      *time.Time `bun:"archived_at" json:"archivedAt,omitempty"`

	Members []SubmissionGroupMember `bun:"rel:has-many,join:id=submission_group_id" json:"members,omitempty"`
}

// SubmissionGroupMember links a course member into a submission group. A
// member joins at most one group per assignment.
type SubmissionGroupMember struct {
	bun.BaseModel `bun:"table:submission_group_members,alias:sgm"`

	ID                string    `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	SubmissionGroupID string    `bun:"submission_group_id,notnull,type:uuid" json:"submissionGroupId"`
	CourseMemberID    string    `bun:"course_member_id,notnull,type:uuid" json:"courseMemberId"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	CreatedBy         *string   `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
}

// CreateCourseRequest is the create payload.
type CreateCourseRequest struct {
	CourseFamilyID string          `json:"courseFamilyId" validate:"required,uuid"`
	Name           string          `json:"name" validate:"required,min=1,max=255"`
	Term           *string         `json:"term,omitempty"`
	Properties     json.RawMessage `json:"properties,omitempty"`
}

// UpdateCourseRequest is the partial update payload.
type UpdateCourseRequest struct {
	Name       *string         `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Term       *string         `json:"term,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// CreateContentRequest is the create payload for course contents.
type CreateContentRequest struct {
	CourseID     string          `json:"courseId" validate:"required,uuid"`
	Path         string          `json:"path" validate:"required"`
	Title        string          `json:"title" validate:"required,min=1,max=255"`
	Kind         string          `json:"kind" validate:"required"`
	ContentType  string          `json:"contentType" validate:"required"`
	MaxGroupSize int             `json:"maxGroupSize" validate:"omitempty,min=1"`
	Position     int             `json:"position,omitempty"`
	Properties   json.RawMessage `json:"properties,omitempty"`
}

// UpdateContentRequest is the partial update payload.
type UpdateContentRequest struct {
	Title        *string         `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	MaxGroupSize *int            `json:"maxGroupSize,omitempty" validate:"omitempty,min=1"`
	Position     *int            `json:"position,omitempty"`
	Properties   json.RawMessage `json:"properties,omitempty"`
}

// CreateMemberRequest enrolls a user into a course.
type CreateMemberRequest struct {
	CourseID    string  `json:"courseId" validate:"required,uuid"`
	UserID      string  `json:"userId" validate:"required,uuid"`
	CourseRole  string  `json:"courseRole" validate:"required"`
	CourseGroup *string `json:"courseGroup,omitempty"`
}

// UpdateMemberRequest changes the group label. Role changes go through the
// dedicated role endpoint where the assignment rule is enforced.
type UpdateMemberRequest struct {
	CourseGroup *string `json:"courseGroup,omitempty"`
}

// CreateGroupRequest creates a submission group for an assignment.
type CreateGroupRequest struct {
	CourseContentID string  `json:"courseContentId" validate:"required,uuid"`
	Name            *string `json:"name,omitempty"`
	MaxGroupSize    int     `json:"maxGroupSize" validate:"omitempty,min=1"`
	MaxSubmissions  *int    `json:"maxSubmissions,omitempty" validate:"omitempty,min=0"`
	MaxTestRuns     *int    `json:"maxTestRuns,omitempty" validate:"omitempty,min=0"`
}

// UpdateGroupRequest is the partial update payload.
type UpdateGroupRequest struct {
	Name           *string `json:"name,omitempty"`
	MaxGroupSize   *int    `json:"maxGroupSize,omitempty" validate:"omitempty,min=1"`
	MaxSubmissions *int    `json:"maxSubmissions,omitempty" validate:"omitempty,min=0"`
	MaxTestRuns    *int    `json:"maxTestRuns,omitempty" validate:"omitempty,min=0"`
}

// AssignRoleRequest changes a member's course role.
type AssignRoleRequest struct {
	CourseRole string `json:"courseRole" validate:"required"`
}

// AddGroupMemberRequest joins a course member into a submission group.
type AddGroupMemberRequest struct {
	CourseMemberID string `json:"courseMemberId" validate:"required,uuid"`
}
