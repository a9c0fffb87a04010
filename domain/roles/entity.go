package roles

import (
	"time"

	"github.com/uptrace/bun"
)

// Role is a global role from the roles catalog. Builtin system roles are
// prefixed with an underscore (_admin, _user_manager).
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          string     `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version     int64      `bun:"version,notnull,default:0" json:"version"`
	Name        string     `bun:"name,notnull,unique" json:"name"`
	Description *string    `bun:"description" json:"description,omitempty"`
	Builtin     bool       `bun:"builtin,notnull,default:false" json:"builtin"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy   *string    `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy   *string    `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt  *time.Time `bun:"archived_at" json:"archivedAt,omitempty"`
}

// UserRole links a user to a global role.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	ID        string    `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	UserID    string    `bun:"user_id,notnull,type:uuid" json:"userId"`
	RoleID    string    `bun:"role_id,notnull,type:uuid" json:"roleId"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	CreatedBy *string   `bun:"created_by,type:uuid" json:"createdBy,omitempty"`

	Role *Role `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// RoleClaim grants (resource, action) to a role.
type RoleClaim struct {
	bun.BaseModel `bun:"table:role_claims,alias:rc"`

	ID       string `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	RoleID   string `bun:"role_id,notnull,type:uuid" json:"roleId"`
	Resource string `bun:"resource,notnull" json:"resource"`
	Action   string `bun:"action,notnull" json:"action"`
	Allowed  bool   `bun:"allowed,notnull,default:true" json:"allowed"`
}

// CourseRoleDef is a catalog row for a course-scoped role with its level.
type CourseRoleDef struct {
	bun.BaseModel `bun:"table:course_roles,alias:cr"`

	ID    string `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name  string `bun:"name,notnull,unique" json:"name"`
	Level int    `bun:"level,notnull" json:"level"`
}
