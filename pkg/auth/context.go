package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/rolemodel"
)

type contextKey string

const (
	// PrincipalContextKey stores the authenticated principal on the echo context.
	PrincipalContextKey contextKey = "auth_principal"
	// SessionContextKey stores the session id of the presenting credential,
	// when the credential was a session access token.
	SessionContextKey contextKey = "auth_session"
)

// GetPrincipal retrieves the authenticated principal from the echo context.
// Returns nil when the request is unauthenticated.
func GetPrincipal(c echo.Context) *rolemodel.Principal {
	if p, ok := c.Get(string(PrincipalContextKey)).(*rolemodel.Principal); ok {
		return p
	}
	return nil
}

// SetPrincipal stores the principal on the echo context.
func SetPrincipal(c echo.Context, p *rolemodel.Principal) {
	c.Set(string(PrincipalContextKey), p)
}

// GetSessionID returns the session id behind the current request's credential,
// or "" when the request was not session-authenticated.
func GetSessionID(c echo.Context) string {
	if sid, ok := c.Get(string(SessionContextKey)).(string); ok {
		return sid
	}
	return ""
}

// SetSessionID stores the authenticating session id on the echo context.
func SetSessionID(c echo.Context, sid string) {
	c.Set(string(SessionContextKey), sid)
}
