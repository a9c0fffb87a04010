package organizations

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Organization is the root of the course hierarchy. Its properties blob
// carries external provider configuration the core passes through untouched.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:o"`

	ID         string          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version    int64           `bun:"version,notnull,default:0" json:"version"`
	Name       string          `bun:"name,notnull" json:"name"`
	Slug       string          `bun:"slug,notnull,unique" json:"slug"`
	Properties json.RawMessage `bun:"properties,type:jsonb,default:'{}'" json:"properties,omitempty"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy  *string         `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy  *string         `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt *time.Time      `bun:"archived_at" json:"archivedAt,omitempty"`
}

// CourseFamily groups the iterations of one course under an organization.
type CourseFamily struct {
	bun.BaseModel `bun:"table:course_families,alias:cf"`

	ID             string          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version        int64           `bun:"version,notnull,default:0" json:"version"`
	OrganizationID string          `bun:"organization_id,notnull,type:uuid" json:"organizationId"`
	Name           string          `bun:"name,notnull" json:"name"`
	Properties     json.RawMessage `bun:"properties,type:jsonb,default:'{}'" json:"properties,omitempty"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy      *string         `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy      *string         `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt     *time.Time      `bun:"archived_at" json:"archivedAt,omitempty"`
}

// CreateOrganizationRequest is the create payload.
type CreateOrganizationRequest struct {
	Name       string          `json:"name" validate:"required,min=1,max=255"`
	Slug       string          `json:"slug" validate:"required,min=1,max=80"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// UpdateOrganizationRequest is the partial update payload.
type UpdateOrganizationRequest struct {
	Name       *string         `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// CreateCourseFamilyRequest is the create payload.
type CreateCourseFamilyRequest struct {
	OrganizationID string          `json:"organizationId" validate:"required,uuid"`
	Name           string          `json:"name" validate:"required,min=1,max=255"`
	Properties     json.RawMessage `json:"properties,omitempty"`
}

// UpdateCourseFamilyRequest is the partial update payload.
type UpdateCourseFamilyRequest struct {
	Name       *string         `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Properties json.RawMessage `json:"properties,omitempty"`
}
