package apitokens

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
)

// Handler handles HTTP requests for API tokens.
type Handler struct {
	svc *Service
}

// NewHandler creates a new API token handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /apitokens.
func (h *Handler) Create(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req CreateTokenRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	resp, err := h.svc.Create(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

// List handles GET /apitokens.
func (h *Handler) List(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	tokens, err := h.svc.ListOwn(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokens)
}

// Revoke handles DELETE /apitokens/:id.
func (h *Handler) Revoke(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	if err := h.svc.Revoke(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
