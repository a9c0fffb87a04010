package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// fakeStore keeps sessions in memory. Rotate mirrors the guarded update of
// the real repository: the swap only succeeds on a live session.
type fakeStore struct {
	sessions map[string]*Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*Session)}
}

func (f *fakeStore) Create(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = fmt.Sprintf("session-%d", len(f.sessions)+1)
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) FindBySID(ctx context.Context, sid string) (*Session, error) {
	for _, s := range f.sessions {
		if s.SID == sid {
			return s, nil
		}
	}
	return nil, apperror.NewNotFound("session", sid)
}

func (f *fakeStore) FindByRefreshHash(ctx context.Context, hash string) (*Session, error) {
	for _, s := range f.sessions {
		if s.RefreshTokenHash != nil && *s.RefreshTokenHash == hash {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	var out []Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.Active(time.Now()) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) Rotate(ctx context.Context, sessionID, newAccessHash, newRefreshHash string, expiresAt, refreshExpiresAt time.Time) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.RevokedAt != nil || s.EndedAt != nil {
		return apperror.ErrTokenExpired
	}
	s.TokenHash = newAccessHash
	s.RefreshTokenHash = &newRefreshHash
	s.ExpiresAt = expiresAt
	s.RefreshExpiresAt = &refreshExpiresAt
	s.RefreshCounter++
	return nil
}

func (f *fakeStore) Touch(ctx context.Context, sessionID, ip string) {}

func (f *fakeStore) End(ctx context.Context, sessionID string) error {
	if s, ok := f.sessions[sessionID]; ok && s.EndedAt == nil {
		now := time.Now()
		s.EndedAt = &now
		s.RefreshTokenHash = nil
	}
	return nil
}

func (f *fakeStore) Revoke(ctx context.Context, sessionID string) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.RevokedAt != nil {
		return apperror.NewNotFound("session", sessionID)
	}
	now := time.Now()
	s.RevokedAt = &now
	s.RefreshTokenHash = nil
	return nil
}

func (f *fakeStore) RevokeAllForUser(ctx context.Context, userID, exceptSessionID string) (int64, error) {
	var n int64
	now := time.Now()
	for _, s := range f.sessions {
		if s.UserID != userID || s.ID == exceptSessionID || s.RevokedAt != nil || s.EndedAt != nil {
			continue
		}
		s.RevokedAt = &now
		s.RefreshTokenHash = nil
		n++
	}
	return n, nil
}

func (f *fakeStore) DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			SessionSecret:   string(testSecret),
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 720 * time.Hour,
		},
	}
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, nil, testConfig(), slog.Default())
}

// seedSession plants a live session holding the hash of refreshToken.
func seedSession(store *fakeStore, refreshToken string) *Session {
	now := time.Now()
	hash := hashToken(refreshToken)
	rexp := now.Add(720 * time.Hour)
	s := &Session{
		ID:               "session-1",
		UserID:           "user-1",
		SID:              "sid-1",
		TokenHash:        hashToken("previous-access"),
		RefreshTokenHash: &hash,
		ExpiresAt:        now.Add(time.Hour),
		RefreshExpiresAt: &rexp,
	}
	store.sessions[s.ID] = s
	return s
}

func TestRefreshRotatesPair(t *testing.T) {
	store := newFakeStore()
	seeded := seedSession(store, "refresh-1")
	svc := newTestService(store)

	pair, err := svc.Refresh(context.Background(), "refresh-1", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, "refresh-1", pair.RefreshToken)
	assert.Equal(t, "sid-1", pair.SessionID)

	// The stored hashes now belong to the new pair.
	assert.Equal(t, hashToken(pair.AccessToken), seeded.TokenHash)
	require.NotNil(t, seeded.RefreshTokenHash)
	assert.Equal(t, hashToken(pair.RefreshToken), *seeded.RefreshTokenHash)
	assert.Equal(t, 1, seeded.RefreshCounter)
}

func TestRefreshSingleUse(t *testing.T) {
	store := newFakeStore()
	seedSession(store, "refresh-1")
	svc := newTestService(store)

	pair, err := svc.Refresh(context.Background(), "refresh-1", "10.0.0.1")
	require.NoError(t, err)

	// Replaying the spent token fails; its hash has been replaced.
	_, err = svc.Refresh(context.Background(), "refresh-1", "10.0.0.1")
	assert.ErrorIs(t, err, apperror.ErrTokenExpired)

	// The freshly issued token still rotates.
	_, err = svc.Refresh(context.Background(), pair.RefreshToken, "10.0.0.1")
	assert.NoError(t, err)
}

func TestRefreshRevokedSession(t *testing.T) {
	store := newFakeStore()
	seeded := seedSession(store, "refresh-1")
	now := time.Now()
	seeded.RevokedAt = &now
	svc := newTestService(store)

	_, err := svc.Refresh(context.Background(), "refresh-1", "10.0.0.1")
	assert.ErrorIs(t, err, apperror.ErrTokenExpired)
}

func TestRefreshExpiredWindow(t *testing.T) {
	store := newFakeStore()
	seeded := seedSession(store, "refresh-1")
	past := time.Now().Add(-time.Minute)
	seeded.RefreshExpiresAt = &past
	svc := newTestService(store)

	_, err := svc.Refresh(context.Background(), "refresh-1", "10.0.0.1")
	assert.ErrorIs(t, err, apperror.ErrTokenExpired)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Refresh(context.Background(), "never-issued", "10.0.0.1")
	assert.ErrorIs(t, err, apperror.ErrTokenExpired)
}

func TestLogoutRequiresSessionCredential(t *testing.T) {
	svc := newTestService(newFakeStore())

	err := svc.Logout(context.Background(), "")
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VAL_002", appErr.Code)
}

func TestRevokeBySIDOwnerOnly(t *testing.T) {
	store := newFakeStore()
	seeded := seedSession(store, "refresh-1")
	svc := newTestService(store)

	// A stranger sees a not-found, not a forbidden.
	stranger := rolemodel.NewPrincipal("user-2")
	err := svc.RevokeBySID(context.Background(), stranger, "sid-1")
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NF_001", appErr.Code)
	assert.Nil(t, seeded.RevokedAt)

	owner := rolemodel.NewPrincipal("user-1")
	require.NoError(t, svc.RevokeBySID(context.Background(), owner, "sid-1"))
	assert.NotNil(t, seeded.RevokedAt)
	assert.Nil(t, seeded.RefreshTokenHash)
}

func TestRevokeBySIDAdmin(t *testing.T) {
	store := newFakeStore()
	seeded := seedSession(store, "refresh-1")
	svc := newTestService(store)

	admin := rolemodel.NewPrincipal("user-9")
	admin.IsAdmin = true
	require.NoError(t, svc.RevokeBySID(context.Background(), admin, "sid-1"))
	assert.NotNil(t, seeded.RevokedAt)
}

func TestAllowLoginRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.LoginRatePerMinute = 2
	svc := NewService(newFakeStore(), nil, cfg, slog.Default())

	assert.True(t, svc.allowLogin("alice"))
	assert.True(t, svc.allowLogin("alice"))
	assert.False(t, svc.allowLogin("alice"))

	// Limits are per username.
	assert.True(t, svc.allowLogin("bob"))
}
