package submissions

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// ResultStatus is the outcome class of one test run.
type ResultStatus int

const (
	StatusScheduled ResultStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCrashed
)

// TerminalFailure reports whether the status is a terminal failure. Failed
// runs may reuse a version identifier; completed runs may not.
func (s ResultStatus) TerminalFailure() bool {
	return s == StatusFailed || s == StatusCrashed
}

// SubmissionArtifact is a bundle uploaded by a submission group. The bytes
// live in the blob store; the row carries the bucket and key reference.
// CourseID is denormalized from the owning group's assignment so permission
// checks stay single-join.
type SubmissionArtifact struct {
	bun.BaseModel `bun:"table:submission_artifacts,alias:sa"`

	ID                string          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version           int64           `bun:"version,notnull,default:0" json:"version"`
	SubmissionGroupID string          `bun:"submission_group_id,notnull,type:uuid" json:"submissionGroupId"`
	CourseID          string          `bun:"course_id,notnull,type:uuid" json:"courseId"`
	Bucket            string          `bun:"bucket,notnull" json:"bucket"`
	Key               string          `bun:"key,notnull" json:"key"`
	Filename          string          `bun:"filename,notnull" json:"filename"`
	Submit            bool            `bun:"submit,notnull,default:false" json:"submit"`
	Properties        json.RawMessage `bun:"properties,type:jsonb,default:'{}'" json:"properties,omitempty"`
	CreatedAt         time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt         time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy         *string         `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy         *string         `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt        *time.Time      `bun:"archived_at" json:"archivedAt,omitempty"`
}

// Result is one test run of an artifact for a course member.
type Result struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID                   string          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version              int64           `bun:"version,notnull,default:0" json:"version"`
	SubmissionArtifactID string          `bun:"submission_artifact_id,notnull,type:uuid" json:"submissionArtifactId"`
	CourseMemberID       string          `bun:"course_member_id,notnull,type:uuid" json:"courseMemberId"`
	CourseID             string          `bun:"course_id,notnull,type:uuid" json:"courseId"`
	ExecutionBackend     *string         `bun:"execution_backend" json:"executionBackend,omitempty"`
	Status               ResultStatus    `bun:"status,notnull,default:0" json:"status"`
	Score                *float64        `bun:"score" json:"score,omitempty"`
	ResultJSON           json.RawMessage `bun:"result_json,type:jsonb,nullzero" json:"resultJson,omitempty"`
	VersionIdentifier    string          `bun:"version_identifier,notnull" json:"versionIdentifier"`
	CreatedAt            time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt            time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy            *string         `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy            *string         `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
}

// SubmissionGrade is the numeric grade of an artifact, on [0, 1].
type SubmissionGrade struct {
	bun.BaseModel `bun:"table:submission_grades,alias:sgr"`

	ID                   string       `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version              int64        `bun:"version,notnull,default:0" json:"version"`
	SubmissionArtifactID string       `bun:"submission_artifact_id,notnull,type:uuid" json:"submissionArtifactId"`
	CourseID             string       `bun:"course_id,notnull,type:uuid" json:"courseId"`
	Grade                float64      `bun:"grade,notnull" json:"grade"`
	Status               ResultStatus `bun:"status,notnull,default:0" json:"status"`
	Feedback             *string      `bun:"feedback" json:"feedback,omitempty"`
	CreatedAt            time.Time    `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt            time.Time    `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy            *string      `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy            *string      `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
}

// SubmissionReview is a freeform review of an artifact.
type SubmissionReview struct {
	bun.BaseModel `bun:"table:submission_reviews,alias:sr"`

	ID                   string    `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version              int64     `bun:"version,notnull,default:0" json:"version"`
	SubmissionArtifactID string    `bun:"submission_artifact_id,notnull,type:uuid" json:"submissionArtifactId"`
	CourseID             string    `bun:"course_id,notnull,type:uuid" json:"courseId"`
	Body                 string    `bun:"body,notnull" json:"body"`
	CreatedAt            time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt            time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy            *string   `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy            *string   `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
}

// UploadRequest asks for a presigned upload slot in a group.
type UploadRequest struct {
	Filename   string          `json:"filename" validate:"required,min=1,max=255"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// UploadResponse returns the artifact row and the one-time upload URL.
type UploadResponse struct {
	Artifact  *SubmissionArtifact `json:"artifact"`
	UploadURL string              `json:"uploadUrl"`
}

// UpdateArtifactRequest is the partial update payload.
type UpdateArtifactRequest struct {
	Properties json.RawMessage `json:"properties,omitempty"`
}

// CreateResultRequest is the create payload for test results. Submitted by
// execution workers through the CRUD surface.
type CreateResultRequest struct {
	SubmissionArtifactID string          `json:"submissionArtifactId" validate:"required,uuid"`
	CourseMemberID       string          `json:"courseMemberId" validate:"required,uuid"`
	ExecutionBackend     *string         `json:"executionBackend,omitempty"`
	Status               ResultStatus    `json:"status"`
	Score                *float64        `json:"score,omitempty"`
	ResultJSON           json.RawMessage `json:"resultJson,omitempty"`
	VersionIdentifier    string          `json:"versionIdentifier" validate:"required"`
}

// UpdateResultRequest is the partial update payload.
type UpdateResultRequest struct {
	Status     *ResultStatus   `json:"status,omitempty"`
	Score      *float64        `json:"score,omitempty"`
	ResultJSON json.RawMessage `json:"resultJson,omitempty"`
}

// CreateGradeRequest is the create payload for grades.
type CreateGradeRequest struct {
	SubmissionArtifactID string       `json:"submissionArtifactId" validate:"required,uuid"`
	Grade                float64      `json:"grade" validate:"min=0,max=1"`
	Status               ResultStatus `json:"status"`
	Feedback             *string      `json:"feedback,omitempty"`
}

// UpdateGradeRequest is the partial update payload.
type UpdateGradeRequest struct {
	Grade    *float64      `json:"grade,omitempty" validate:"omitempty,min=0,max=1"`
	Status   *ResultStatus `json:"status,omitempty"`
	Feedback *string       `json:"feedback,omitempty"`
}

// CreateReviewRequest is the create payload for reviews.
type CreateReviewRequest struct {
	SubmissionArtifactID string `json:"submissionArtifactId" validate:"required,uuid"`
	Body                 string `json:"body" validate:"required"`
}

// UpdateReviewRequest is the partial update payload.
type UpdateReviewRequest struct {
	Body *string `json:"body,omitempty" validate:"omitempty,min=1"`
}
