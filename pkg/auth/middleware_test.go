package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

type fakePasswords struct{}

func (fakePasswords) VerifyPassword(ctx context.Context, username, password string) (*rolemodel.Principal, error) {
	if username == "alice" && password == "secret" {
		return rolemodel.NewPrincipal("user-alice"), nil
	}
	return nil, apperror.ErrInvalidCredentials
}

type fakeTokens struct{}

func (fakeTokens) VerifyAPIToken(ctx context.Context, token string) (*rolemodel.Principal, error) {
	if token == "ctp_valid" {
		return rolemodel.NewPrincipal("user-token"), nil
	}
	return nil, apperror.ErrInvalidCredentials
}

type fakeSessions struct{}

func (fakeSessions) VerifyAccessToken(ctx context.Context, token string) (*rolemodel.Principal, string, error) {
	if token == "aaa.bbb.ccc" {
		return rolemodel.NewPrincipal("user-session"), "session-1", nil
	}
	return nil, "", apperror.ErrInvalidCredentials
}

func newTestMiddleware() *Middleware {
	return NewMiddleware(&config.Config{}, slog.Default(), fakePasswords{}, fakeTokens{}, fakeSessions{}, nil)
}

// invoke runs a middleware chain around a trivial handler and returns the
// context for inspection.
func invoke(mw echo.MiddlewareFunc, req *http.Request) (echo.Context, error) {
	e := echo.New()
	c := e.NewContext(req, httptest.NewRecorder())
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return c, handler(c)
}

func TestRequireAuthBasic(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "secret")

	m := newTestMiddleware()
	c, err := invoke(m.RequireAuth(), req)
	require.NoError(t, err)

	p := GetPrincipal(c)
	require.NotNil(t, p)
	assert.Equal(t, "user-alice", p.UserID)
	assert.Equal(t, "user-alice", database.ActorID(c.Request().Context()))
	assert.Empty(t, GetSessionID(c))
}

func TestRequireAuthBasicWrongPassword(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "wrong")

	m := newTestMiddleware()
	_, err := invoke(m.RequireAuth(), req)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestRequireAuthBasicMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic %%%not-base64%%%")

	m := newTestMiddleware()
	_, err := invoke(m.RequireAuth(), req)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestRequireAuthAPIToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ctp_valid")

	m := newTestMiddleware()
	c, err := invoke(m.RequireAuth(), req)
	require.NoError(t, err)

	p := GetPrincipal(c)
	require.NotNil(t, p)
	assert.Equal(t, "user-token", p.UserID)
	assert.Empty(t, GetSessionID(c))
}

func TestRequireAuthSessionToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer aaa.bbb.ccc")

	m := newTestMiddleware()
	c, err := invoke(m.RequireAuth(), req)
	require.NoError(t, err)

	p := GetPrincipal(c)
	require.NotNil(t, p)
	assert.Equal(t, "user-session", p.UserID)
	assert.Equal(t, "session-1", GetSessionID(c))
	assert.Equal(t, "user-session", database.ActorID(c.Request().Context()))
}

func TestRequireAuthMissingCredential(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	m := newTestMiddleware()
	_, err := invoke(m.RequireAuth(), req)
	assert.ErrorIs(t, err, apperror.ErrMissingCredentials)
}

func TestRequireAuthUnknownShape(t *testing.T) {
	// No ctp_ prefix, no dots, SSO not configured.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	m := newTestMiddleware()
	_, err := invoke(m.RequireAuth(), req)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestTokenFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "aaa.bbb.ccc"})

	m := newTestMiddleware()
	c, err := invoke(m.RequireAuth(), req)
	require.NoError(t, err)
	require.NotNil(t, GetPrincipal(c))
	assert.Equal(t, "session-1", GetSessionID(c))
}

func TestTokenFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=ctp_valid", nil)

	m := newTestMiddleware()
	c, err := invoke(m.RequireAuth(), req)
	require.NoError(t, err)
	require.NotNil(t, GetPrincipal(c))
}

func TestOptionalAuthAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	m := newTestMiddleware()
	c, err := invoke(m.OptionalAuth(), req)
	require.NoError(t, err)
	assert.Nil(t, GetPrincipal(c))
}

func TestOptionalAuthBasic(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "secret")

	m := newTestMiddleware()
	c, err := invoke(m.OptionalAuth(), req)
	require.NoError(t, err)
	require.NotNil(t, GetPrincipal(c))
	assert.Equal(t, "user-alice", GetPrincipal(c).UserID)
}

func TestOptionalAuthBadCredentialStillFails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ctp_invalid")

	m := newTestMiddleware()
	_, err := invoke(m.OptionalAuth(), req)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestRequireAdmin(t *testing.T) {
	m := newTestMiddleware()
	e := echo.New()
	handler := m.RequireAdmin()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	// No principal at all.
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.ErrorIs(t, handler(c), apperror.ErrMissingCredentials)

	// Plain user.
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	SetPrincipal(c, rolemodel.NewPrincipal("user-1"))
	assert.ErrorIs(t, handler(c), apperror.ErrForbidden)

	// Admin.
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	admin := rolemodel.NewPrincipal("user-2")
	admin.IsAdmin = true
	SetPrincipal(c, admin)
	assert.NoError(t, handler(c))
}
