package users

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// User represents a human or service account.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         string  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version    int64   `bun:"version,notnull,default:0" json:"version"`
	Username   string  `bun:"username,notnull,unique" json:"username"`
	Email      *string `bun:"email" json:"email,omitempty"`
	GivenName  *string `bun:"given_name" json:"givenName,omitempty"`
	FamilyName *string `bun:"family_name" json:"familyName,omitempty"`
	// PasswordHash is nil for SSO-only and service users.
	PasswordHash          *string    `bun:"password_hash" json:"-"`
	IsService             bool       `bun:"is_service,notnull,default:false" json:"isService"`
	PasswordResetRequired bool       `bun:"password_reset_required,notnull,default:false" json:"passwordResetRequired"`
	CreatedAt             time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt             time.Time  `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy             *string    `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy             *string    `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
	ArchivedAt            *time.Time `bun:"archived_at" json:"archivedAt,omitempty"`
}

// Account links an external identity (provider, provider account id) to a
// local user. One row per federation.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID                string    `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Provider          string    `bun:"provider,notnull" json:"provider"`
	ProviderAccountID string    `bun:"provider_account_id,notnull" json:"providerAccountId"`
	UserID            string    `bun:"user_id,notnull,type:uuid" json:"userId"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt         time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// ServiceAccount describes a machine user. Its user row carries
// is_service=true.
type ServiceAccount struct {
	bun.BaseModel `bun:"table:services,alias:sv"`

	ID          string          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	UserID      string          `bun:"user_id,notnull,type:uuid,unique" json:"userId"`
	Slug        string          `bun:"slug,notnull,unique" json:"slug"`
	ServiceType string          `bun:"service_type,notnull" json:"serviceType"`
	Config      json.RawMessage `bun:"config,type:jsonb,default:'{}'" json:"config,omitempty"`
	Enabled     bool            `bun:"enabled,notnull,default:true" json:"enabled"`
	LastSeenAt  *time.Time      `bun:"last_seen_at" json:"lastSeenAt,omitempty"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// UserDTO is the safe projection of a user.
type UserDTO struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      *string `json:"email,omitempty"`
	GivenName  *string `json:"givenName,omitempty"`
	FamilyName *string `json:"familyName,omitempty"`
	IsService  bool    `json:"isService"`
}

// ToDTO converts a User to its response shape.
func (u *User) ToDTO() UserDTO {
	return UserDTO{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		GivenName:  u.GivenName,
		FamilyName: u.FamilyName,
		IsService:  u.IsService,
	}
}

// CreateUserRequest is the create payload for the CRUD surface.
type CreateUserRequest struct {
	Username   string  `json:"username" validate:"required,min=1,max=120"`
	Email      *string `json:"email,omitempty"`
	GivenName  *string `json:"givenName,omitempty"`
	FamilyName *string `json:"familyName,omitempty"`
	Password   *string `json:"password,omitempty"`
}

// UpdateUserRequest is the partial update payload.
type UpdateUserRequest struct {
	Email      *string `json:"email,omitempty"`
	GivenName  *string `json:"givenName,omitempty"`
	FamilyName *string `json:"familyName,omitempty"`
}
