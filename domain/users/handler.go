package users

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
)

// SetPasswordRequest is the payload for first-time password set.
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the payload for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// AdminPasswordRequest targets another user by username.
type AdminPasswordRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password,omitempty"`
}

// PasswordStatusResponse reports password state for a user.
type PasswordStatusResponse struct {
	Username      string `json:"username"`
	HasPassword   bool   `json:"hasPassword"`
	ResetRequired bool   `json:"resetRequired"`
	Legacy        bool   `json:"legacy"`
}

// Handler handles HTTP requests for the password surface.
type Handler struct {
	svc *Service
}

// NewHandler creates a new users handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SetPassword handles POST /password/set.
func (h *Handler) SetPassword(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req SetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.svc.SetPassword(c.Request().Context(), p, req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword handles POST /password/change.
func (h *Handler) ChangePassword(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), p, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AdminSetPassword handles POST /password/admin/set.
func (h *Handler) AdminSetPassword(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req AdminPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Password == "" {
		return apperror.ErrBadRequest.WithMessage("password is required")
	}
	if err := h.svc.AdminSetPassword(c.Request().Context(), p, req.Username, req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AdminResetPassword handles POST /password/admin/reset.
func (h *Handler) AdminResetPassword(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req AdminPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.svc.AdminResetPassword(c.Request().Context(), p, req.Username); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// PasswordStatus handles GET /password/status and /password/status/:username.
func (h *Handler) PasswordStatus(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	status, err := h.svc.PasswordStatus(c.Request().Context(), p, c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}
