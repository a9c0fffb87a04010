package messages

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Handler serves the message surface.
type Handler struct {
	svc *Service
}

// NewHandler creates a new messages handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /messages.
func (h *Handler) List(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}

	f, err := listFilter(c)
	if err != nil {
		return err
	}
	dtos, total, err := h.svc.List(c.Request().Context(), p, f)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Total-Count", strconv.Itoa(total))
	return c.JSON(http.StatusOK, dtos)
}

// Create handles POST /messages.
func (h *Handler) Create(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req CreateMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	dto, err := h.svc.Create(c.Request().Context(), p, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto)
}

// Get handles GET /messages/:id.
func (h *Handler) Get(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	dto, err := h.svc.Get(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto)
}

// Update handles PATCH /messages/:id.
func (h *Handler) Update(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req UpdateMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	dto, err := h.svc.Update(c.Request().Context(), p, c.Param("id"), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto)
}

// Delete handles DELETE /messages/:id.
func (h *Handler) Delete(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	req := new(DeleteMessageRequest)
	// The body is optional; a bare DELETE carries no reason.
	_ = c.Bind(req)

	if err := h.svc.Delete(c.Request().Context(), p, c.Param("id"), req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkRead handles POST /messages/:id/reads.
func (h *Handler) MarkRead(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	if err := h.svc.MarkRead(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UnmarkRead handles DELETE /messages/:id/reads.
func (h *Handler) UnmarkRead(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	if err := h.svc.UnmarkRead(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Audit handles GET /messages/:id/audit.
func (h *Handler) Audit(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	entries, err := h.svc.Audit(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func listFilter(c echo.Context) (ListFilter, error) {
	f := ListFilter{
		Scope:             c.QueryParam("scope"),
		UserID:            c.QueryParam("user_id"),
		CourseMemberID:    c.QueryParam("course_member_id"),
		SubmissionGroupID: c.QueryParam("submission_group_id"),
		CourseGroupID:     c.QueryParam("course_group_id"),
		CourseContentID:   c.QueryParam("course_content_id"),
		CourseID:          c.QueryParam("course_id"),
		ParentID:          c.QueryParam("parent_id"),
		Limit:             defaultListLimit,
		MatchAll:          true,
	}

	if v := c.QueryParam("tags"); v != "" {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}
	switch c.QueryParam("tags_match") {
	case "", "all":
	case "any":
		f.MatchAll = false
	default:
		return f, apperror.ErrBadRequest.WithMessage("tags_match must be all or any")
	}

	if v := c.QueryParam("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, apperror.ErrBadRequest.WithMessage("skip must be a non-negative integer")
		}
		f.Skip = n
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, apperror.ErrBadRequest.WithMessage("limit must be a positive integer")
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		f.Limit = n
	}
	return f, nil
}
