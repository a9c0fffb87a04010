package submissions

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
)

// Handler handles the artifact endpoints outside the CRUD surface.
type Handler struct {
	svc *Service
}

// NewHandler creates a new submissions handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Upload handles POST /submission-groups/:id/artifacts.
func (h *Handler) Upload(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req UploadRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	resp, err := h.svc.CreateUpload(c.Request().Context(), p, c.Param("id"), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

// GroupArtifacts handles GET /submission-groups/:id/artifacts.
func (h *Handler) GroupArtifacts(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	artifacts, err := h.svc.ListGroupArtifacts(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, artifacts)
}

// ArtifactResults handles GET /artifacts/:id/results.
func (h *Handler) ArtifactResults(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	results, err := h.svc.ListArtifactResults(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// ArtifactGrades handles GET /artifacts/:id/grades.
func (h *Handler) ArtifactGrades(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	grades, err := h.svc.ListArtifactGrades(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, grades)
}

// ArtifactReviews handles GET /artifacts/:id/reviews.
func (h *Handler) ArtifactReviews(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	reviews, err := h.svc.ListArtifactReviews(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviews)
}

// Submit handles POST /artifacts/:id/submit.
func (h *Handler) Submit(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}

	artifact, workflowID, err := h.svc.Submit(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"artifact":    artifact,
		"workflow_id": workflowID,
	})
}

// Download handles GET /artifacts/:id/download.
func (h *Handler) Download(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}

	url, err := h.svc.DownloadURL(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"download_url": url})
}
