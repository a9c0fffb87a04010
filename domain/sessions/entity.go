package sessions

import (
	"time"

	"github.com/uptrace/bun"
)

// Session is one device login. The access token is a signed JWT carrying the
// session id; the refresh token is opaque and stored hashed.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID      string `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Version int64  `bun:"version,notnull,default:0" json:"version"`
	UserID  string `bun:"user_id,notnull,type:uuid" json:"userId"`
	// SID is the stable per-device identifier exposed to clients.
	SID              string     `bun:"sid,notnull,unique" json:"sid"`
	TokenHash        string     `bun:"session_id,notnull" json:"-"`
	RefreshTokenHash *string    `bun:"refresh_token_hash" json:"-"`
	IPCreated        string     `bun:"ip_created" json:"ipCreated,omitempty"`
	IPLastSeen       string     `bun:"ip_last_seen" json:"ipLastSeen,omitempty"`
	UserAgent        string     `bun:"user_agent" json:"userAgent,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	LastSeenAt       time.Time  `bun:"last_seen_at,notnull,default:now()" json:"lastSeenAt"`
	ExpiresAt        time.Time  `bun:"expires_at,notnull" json:"expiresAt"`
	RefreshExpiresAt *time.Time `bun:"refresh_expires_at" json:"refreshExpiresAt,omitempty"`
	RefreshCounter   int        `bun:"refresh_counter,notnull,default:0" json:"refreshCounter"`
	RevokedAt        *time.Time `bun:"revoked_at" json:"revokedAt,omitempty"`
	EndedAt          *time.Time `bun:"ended_at" json:"endedAt,omitempty"`
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.EndedAt == nil && now.Before(s.ExpiresAt)
}

// SessionDTO is the device view returned by GET /sessions.
type SessionDTO struct {
	SID        string    `json:"sid"`
	IPCreated  string    `json:"ipCreated,omitempty"`
	IPLastSeen string    `json:"ipLastSeen,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

// ToDTO converts the session to its device view.
func (s *Session) ToDTO(currentSID string) SessionDTO {
	return SessionDTO{
		SID:        s.SID,
		IPCreated:  s.IPCreated,
		IPLastSeen: s.IPLastSeen,
		UserAgent:  s.UserAgent,
		CreatedAt:  s.CreatedAt,
		LastSeenAt: s.LastSeenAt,
		ExpiresAt:  s.ExpiresAt,
		Current:    s.SID == currentSID,
	}
}

// LoginRequest is the POST /auth/login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the POST /auth/refresh payload.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is the login/refresh response.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SessionID    string    `json:"session_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}
