// Package auth authenticates requests and places the resulting Principal on
// the request context. Credentials are dispatched on shape: Basic
// username/password pairs, ctp_ API tokens, JWT session access tokens, then
// SSO access tokens when an identity provider is configured.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// APITokenPrefix marks API tokens on the wire and in storage.
const APITokenPrefix = "ctp_"

// PasswordVerifier authenticates Basic username/password pairs.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, username, password string) (*rolemodel.Principal, error)
}

// TokenVerifier authenticates ctp_ API tokens.
type TokenVerifier interface {
	VerifyAPIToken(ctx context.Context, token string) (*rolemodel.Principal, error)
}

// SessionVerifier authenticates session access tokens. The returned string is
// the session id behind the token.
type SessionVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*rolemodel.Principal, string, error)
}

// ExternalIdentity is the provider-scoped identity extracted from an SSO token.
type ExternalIdentity struct {
	Provider          string
	ProviderAccountID string
	Email             string
	Username          string
	GivenName         string
	FamilyName        string
}

// IdentityLinker maps an external identity to a local user, creating the
// Account link (and the user) on first sight.
type IdentityLinker interface {
	LinkExternalIdentity(ctx context.Context, id ExternalIdentity) (*rolemodel.Principal, error)
}

// Middleware authenticates requests.
type Middleware struct {
	cfg       *config.Config
	log       *slog.Logger
	passwords PasswordVerifier
	tokens    TokenVerifier
	sessions  SessionVerifier
	sso       *SSOService
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(cfg *config.Config, log *slog.Logger, passwords PasswordVerifier, tokens TokenVerifier, sessions SessionVerifier, linker IdentityLinker) *Middleware {
	return &Middleware{
		cfg:       cfg,
		log:       log.With(logger.Scope("auth")),
		passwords: passwords,
		tokens:    tokens,
		sessions:  sessions,
		sso:       NewSSOService(cfg, log, linker),
	}
}

// RequireAuth returns middleware that rejects unauthenticated requests.
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := m.authenticate(c); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// OptionalAuth authenticates when a credential is present and continues
// anonymously otherwise.
func (m *Middleware) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if hasCredential(c.Request()) {
				if err := m.authenticate(c); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects requests whose principal lacks the global admin role.
func (m *Middleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			if p == nil {
				return apperror.ErrMissingCredentials
			}
			if !p.IsAdmin {
				return apperror.ErrForbidden
			}
			return next(c)
		}
	}
}

// Authenticate resolves the request credential outside the middleware chain.
// The WebSocket gateway authenticates after the upgrade so it can close the
// socket with a policy code instead of an HTTP status.
func (m *Middleware) Authenticate(c echo.Context) error {
	return m.authenticate(c)
}

// authenticate resolves the request credential into a Principal and stores it
// on the echo context. The actor id is also propagated onto the request
// context for database audit columns.
func (m *Middleware) authenticate(c echo.Context) error {
	r := c.Request()
	ctx := r.Context()

	var (
		p   *rolemodel.Principal
		sid string
		err error
	)
	if hasBasicAuth(r) {
		p, err = m.verifyBasic(ctx, r)
	} else {
		token := extractToken(r)
		if token == "" {
			return apperror.ErrMissingCredentials
		}
		p, sid, err = m.verify(ctx, token)
	}
	if err != nil {
		m.log.Warn("authentication failed", logger.Error(err), slog.String("path", c.Path()))
		return err
	}

	SetPrincipal(c, p)
	if sid != "" {
		SetSessionID(c, sid)
	}
	c.SetRequest(c.Request().WithContext(database.WithActor(ctx, p.UserID)))
	return nil
}

// verifyBasic authenticates a Basic username/password pair.
func (m *Middleware) verifyBasic(ctx context.Context, r *http.Request) (*rolemodel.Principal, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, apperror.ErrInvalidCredentials
	}
	return m.passwords.VerifyPassword(ctx, username, password)
}

// verify dispatches on token shape.
func (m *Middleware) verify(ctx context.Context, token string) (*rolemodel.Principal, string, error) {
	if strings.HasPrefix(token, APITokenPrefix) {
		p, err := m.tokens.VerifyAPIToken(ctx, token)
		return p, "", err
	}

	// Session access tokens are compact JWTs (two dots, no ctp_ prefix).
	if strings.Count(token, ".") == 2 {
		p, sid, err := m.sessions.VerifyAccessToken(ctx, token)
		if err == nil {
			return p, sid, nil
		}
		if !m.cfg.SSO.IsConfigured() {
			return nil, "", err
		}
		// An SSO access token may also be a JWT; fall through.
	}

	if m.cfg.SSO.IsConfigured() {
		p, err := m.sso.Verify(ctx, token)
		return p, "", err
	}

	return nil, "", apperror.ErrInvalidCredentials
}

// hasCredential reports whether the request carries any credential at all.
func hasCredential(r *http.Request) bool {
	return hasBasicAuth(r) || extractToken(r) != ""
}

func hasBasicAuth(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Basic ")
}

// extractToken pulls the bearer token from the Authorization header, the
// session cookie, or the token query parameter (WebSocket upgrades cannot set
// headers from browsers).
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if cookie, err := r.Cookie("session"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return ""
}
