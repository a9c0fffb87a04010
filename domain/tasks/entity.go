package tasks

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// TaskState is the externally visible state of a workflow.
type TaskState string

const (
	StatePending    TaskState = "pending"
	StateProcessing TaskState = "processing"
	StateCompleted  TaskState = "completed"
	StateFailed     TaskState = "failed"
	StateCancelled  TaskState = "cancelled"
)

// Terminal reports whether the state can no longer change.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Workflow is one durable unit of work. Rows are claimed by polling workers
// and retried with backoff until they reach a terminal state.
type Workflow struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID           string          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version      int64           `bun:"version,notnull,default:0" json:"version"`
	TaskName     string          `bun:"task_name,notnull" json:"taskName"`
	Queue        string          `bun:"queue,notnull,default:'default'" json:"queue"`
	Parameters   json.RawMessage `bun:"parameters,type:jsonb,default:'{}'" json:"parameters,omitempty"`
	Status       string          `bun:"status,notnull,default:'pending'" json:"status"`
	Priority     int             `bun:"priority,notnull,default:0" json:"priority"`
	AttemptCount int             `bun:"attempt_count,notnull,default:0" json:"attemptCount"`
	LastError    *string         `bun:"last_error" json:"lastError,omitempty"`
	Result       json.RawMessage `bun:"result,type:jsonb,nullzero" json:"result,omitempty"`
	ScheduledAt  time.Time       `bun:"scheduled_at,notnull,default:now()" json:"scheduledAt"`
	StartedAt    *time.Time      `bun:"started_at" json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `bun:"completed_at" json:"completedAt,omitempty"`
	CreatedAt    time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt    time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy    *string         `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
}

// TaskInfo is the status projection of a workflow.
type TaskInfo struct {
	WorkflowID  string         `json:"workflowId"`
	State       TaskState      `json:"state"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// TaskResult carries the outcome of a terminal workflow: either an output
// payload or an error message.
type TaskResult struct {
	WorkflowID string          `json:"workflowId"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      *string         `json:"error,omitempty"`
}

// Info builds the status projection.
func (w *Workflow) Info() *TaskInfo {
	meta := map[string]any{
		"task_name": w.TaskName,
		"queue":     w.Queue,
		"attempts":  w.AttemptCount,
	}
	if w.LastError != nil {
		meta["last_error"] = *w.LastError
	}
	return &TaskInfo{
		WorkflowID:  w.ID,
		State:       TaskState(w.Status),
		CreatedAt:   w.CreatedAt,
		StartedAt:   w.StartedAt,
		CompletedAt: w.CompletedAt,
		Meta:        meta,
	}
}

// TrackerEntry is the ephemeral record kept per submitted workflow. The
// user/course/organization triple drives the access check.
type TrackerEntry struct {
	WorkflowID     string    `json:"workflow_id"`
	TaskName       string    `json:"task_name"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by"`
	UserID         string    `json:"user_id"`
	CourseID       *string   `json:"course_id,omitempty"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	EntityType     *string   `json:"entity_type,omitempty"`
	EntityID       *string   `json:"entity_id,omitempty"`
	Description    *string   `json:"description,omitempty"`
}

// Submission describes a workflow to run.
type Submission struct {
	TaskName   string          `json:"taskName" validate:"required"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Queue      string          `json:"queue,omitempty"`
	WorkflowID string          `json:"workflowId,omitempty"`
	Priority   int             `json:"priority,omitempty"`
}

// SubmitTaskRequest is the payload of the manual submit endpoint.
type SubmitTaskRequest struct {
	Submission
	CourseID       *string `json:"courseId,omitempty"`
	OrganizationID *string `json:"organizationId,omitempty"`
	EntityType     *string `json:"entityType,omitempty"`
	EntityID       *string `json:"entityId,omitempty"`
	Description    *string `json:"description,omitempty"`
}
