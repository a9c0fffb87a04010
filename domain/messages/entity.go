package messages

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Scope names the single target a message addresses.
type Scope string

const (
	ScopeUser            Scope = "user"
	ScopeCourseMember    Scope = "course_member"
	ScopeSubmissionGroup Scope = "submission_group"
	ScopeCourseGroup     Scope = "course_group"
	ScopeCourseContent   Scope = "course_content"
	ScopeCourse          Scope = "course"
)

// AuditAction is the kind of a message audit entry.
type AuditAction string

const (
	AuditCreated AuditAction = "created"
	AuditUpdated AuditAction = "updated"
	AuditDeleted AuditAction = "deleted"
)

// Tombstone replaces title and content of soft-deleted messages.
const Tombstone = "[deleted]"

// Message is a discussion entry addressed at exactly one target. The six
// target columns stay separate for indexability; Scope is derived from
// whichever one is set.
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID       string  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version  int64   `bun:"version,notnull,default:0" json:"version"`
	AuthorID string  `bun:"author_id,notnull,type:uuid" json:"authorId"`
	ParentID *string `bun:"parent_id,type:uuid" json:"parentId,omitempty"`
	Level    int     `bun:"level,notnull,default:0" json:"level"`
	Title    string  `bun:"title,notnull" json:"title"`
	Content  string  `bun:"content,notnull" json:"content"`
	Scope    Scope   `bun:"scope,notnull" json:"scope"`

	TargetUserID      *string `bun:"user_id,type:uuid" json:"userId,omitempty"`
	CourseMemberID    *string `bun:"course_member_id,type:uuid" json:"courseMemberId,omitempty"`
	SubmissionGroupID *string `bun:"submission_group_id,type:uuid" json:"submissionGroupId,omitempty"`
	CourseGroupID     *string `bun:"course_group_id,type:uuid" json:"courseGroupId,omitempty"`
	CourseContentID   *string `bun:"course_content_id,type:uuid" json:"courseContentId,omitempty"`
	CourseID          *string `bun:"course_id,type:uuid" json:"courseId,omitempty"`

	Properties json.RawMessage `bun:"properties,type:jsonb,default:'{}'" json:"properties,omitempty"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy  *string         `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy  *string         `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt *time.Time      `bun:"archived_at" json:"archivedAt,omitempty"`
}

// Deleted reports whether the message has been soft-deleted.
func (m *Message) Deleted() bool {
	return m.ArchivedAt != nil
}

// MessageRead records that a user has read a message. One row per
// (message, reader) pair.
type MessageRead struct {
	bun.BaseModel `bun:"table:message_reads,alias:mr"`

	ID           string    `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	MessageID    string    `bun:"message_id,notnull,type:uuid" json:"messageId"`
	ReaderUserID string    `bun:"reader_user_id,notnull,type:uuid" json:"readerUserId"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// MessageAuditLog is the append-only change history of a message.
type MessageAuditLog struct {
	bun.BaseModel `bun:"table:message_audit_logs,alias:mal"`

	ID         string      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	MessageID  string      `bun:"message_id,notnull,type:uuid" json:"messageId"`
	UserID     string      `bun:"user_id,notnull,type:uuid" json:"userId"`
	Action     AuditAction `bun:"action,notnull" json:"action"`
	OldTitle   *string     `bun:"old_title" json:"oldTitle,omitempty"`
	NewTitle   *string     `bun:"new_title" json:"newTitle,omitempty"`
	OldContent *string     `bun:"old_content" json:"oldContent,omitempty"`
	NewContent *string     `bun:"new_content" json:"newContent,omitempty"`
	CreatedAt  time.Time   `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// MessageDTO is a message projected for one viewer.
type MessageDTO struct {
	*Message
	IsRead bool `json:"isRead"`
}

// CreateMessageRequest carries at most one target field. Zero targets
// defaults to a note-to-self; replies inherit their parent's target.
type CreateMessageRequest struct {
	Title    string  `json:"title" validate:"required,max=512"`
	Content  string  `json:"content" validate:"required"`
	ParentID *string `json:"parentId,omitempty" validate:"omitempty,uuid"`

	UserID            *string `json:"userId,omitempty" validate:"omitempty,uuid"`
	CourseMemberID    *string `json:"courseMemberId,omitempty" validate:"omitempty,uuid"`
	SubmissionGroupID *string `json:"submissionGroupId,omitempty" validate:"omitempty,uuid"`
	CourseGroupID     *string `json:"courseGroupId,omitempty" validate:"omitempty,uuid"`
	CourseContentID   *string `json:"courseContentId,omitempty" validate:"omitempty,uuid"`
	CourseID          *string `json:"courseId,omitempty" validate:"omitempty,uuid"`

	Properties json.RawMessage `json:"properties,omitempty"`
}

// UpdateMessageRequest is the author-only partial update payload.
type UpdateMessageRequest struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,min=1,max=512"`
	Content *string `json:"content,omitempty" validate:"omitempty,min=1"`
}

// DeleteMessageRequest optionally carries a deletion reason.
type DeleteMessageRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=512"`
}
