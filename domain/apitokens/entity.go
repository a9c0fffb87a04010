package apitokens

import (
	"time"

	"github.com/uptrace/bun"
)

// ApiToken is a long-lived bearer credential. Only the SHA-256 hash and the
// non-secret prefix are stored; the full token is shown exactly once.
type ApiToken struct {
	bun.BaseModel `bun:"table:api_tokens,alias:at"`

	ID          string     `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version     int64      `bun:"version,notnull,default:0" json:"version"`
	UserID      string     `bun:"user_id,notnull,type:uuid" json:"userId"`
	Name        string     `bun:"name,notnull" json:"name"`
	TokenHash   string     `bun:"token_hash,notnull,unique" json:"-"`
	TokenPrefix string     `bun:"token_prefix,notnull" json:"tokenPrefix"`
	Scopes      []string   `bun:"scopes,array" json:"scopes"`
	ExpiresAt   *time.Time `bun:"expires_at" json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `bun:"revoked_at" json:"revokedAt,omitempty"`
	LastUsedAt  *time.Time `bun:"last_used_at" json:"lastUsedAt,omitempty"`
	UsageCount  int64      `bun:"usage_count,notnull,default:0" json:"usageCount"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CreatedBy   *string    `bun:"created_by,type:uuid" json:"createdBy,omitempty"`
	UpdatedBy   *string    `bun:"updated_by,type:uuid" json:"updatedBy,omitempty"`
}

// CreateTokenRequest is the POST /apitokens payload.
type CreateTokenRequest struct {
	Name      string     `json:"name" validate:"required,min=1,max=120"`
	Scopes    []string   `json:"scopes,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// CreateTokenResponse carries the full token, returned exactly once.
type CreateTokenResponse struct {
	ApiToken
	Token string `json:"token"`
}
