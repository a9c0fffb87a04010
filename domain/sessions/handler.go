package sessions

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
)

// ProviderInfo describes one configured SSO provider.
type ProviderInfo struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
}

// Handler handles HTTP requests for the auth and session surfaces.
type Handler struct {
	svc *Service
	cfg *config.Config
}

// NewHandler creates a new sessions handler.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	pair, err := h.svc.Login(c.Request().Context(), req, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	pair, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context(), auth.GetSessionID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Providers handles GET /auth/providers.
func (h *Handler) Providers(c echo.Context) error {
	providers := []ProviderInfo{}
	if h.cfg.SSO.IsConfigured() {
		providers = append(providers, ProviderInfo{
			Name:   h.cfg.SSO.ProviderName,
			Issuer: h.cfg.SSO.Issuer,
		})
	}
	return c.JSON(http.StatusOK, providers)
}

// List handles GET /sessions.
func (h *Handler) List(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	list, err := h.svc.ListOwn(c.Request().Context(), p, auth.GetSessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Revoke handles DELETE /sessions/:sid.
func (h *Handler) Revoke(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	if err := h.svc.RevokeBySID(c.Request().Context(), p, c.Param("sid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeAll handles DELETE /sessions?all=true&except_current=true.
func (h *Handler) RevokeAll(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	if c.QueryParam("all") != "true" {
		return apperror.ErrBadRequest.WithMessage("all=true is required")
	}
	exceptCurrent := c.QueryParam("except_current") == "true"
	revoked, err := h.svc.RevokeAll(c.Request().Context(), p, exceptCurrent, auth.GetSessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"revoked": revoked})
}
