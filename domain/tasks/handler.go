package tasks

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handler handles HTTP requests for tasks.
type Handler struct {
	svc    *Service
	engine *Engine
}

// NewHandler creates a new tasks handler.
func NewHandler(svc *Service, engine *Engine) *Handler {
	return &Handler{svc: svc, engine: engine}
}

// List handles GET /tasks.
func (h *Handler) List(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	limit, offset := listParams(c)

	entries, total, err := h.svc.List(c.Request().Context(), p, limit, offset)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Total-Count", strconv.Itoa(total))
	return c.JSON(http.StatusOK, entries)
}

// Submit handles POST /tasks/submit.
func (h *Handler) Submit(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req SubmitTaskRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	workflowID, err := h.svc.SubmitAndTrack(c.Request().Context(), req.Submission, p.UserID, TrackerTags{
		UserID:         p.UserID,
		CourseID:       req.CourseID,
		OrganizationID: req.OrganizationID,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		Description:    req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"workflow_id": workflowID})
}

// Get handles GET /tasks/:id.
func (h *Handler) Get(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	entry, info, err := h.svc.Get(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entry":  entry,
		"status": info,
	})
}

// Status handles GET /tasks/:id/status.
func (h *Handler) Status(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	info, err := h.svc.Status(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// Result handles GET /tasks/:id/result.
func (h *Handler) Result(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	result, err := h.svc.Result(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Cancel handles DELETE /tasks/:id.
func (h *Handler) Cancel(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	cancelled, err := h.svc.Cancel(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// Workflows handles GET /tasks/workflows, the admin view over the durable
// store including workflows whose tracker entries have expired.
func (h *Handler) Workflows(c echo.Context) error {
	limit, offset := listParams(c)
	state := TaskState(c.QueryParam("status"))

	infos, total, err := h.engine.List(c.Request().Context(), limit, offset, state)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Total-Count", strconv.Itoa(total))
	return c.JSON(http.StatusOK, infos)
}

// Stats handles GET /tasks/stats.
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.engine.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func listParams(c echo.Context) (limit, offset int) {
	limit = defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = min(v, maxListLimit)
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
