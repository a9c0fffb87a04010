package courses

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Handler handles the non-CRUD course endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new courses handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AssignRole handles POST /course-members/:id/role.
func (h *Handler) AssignRole(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req AssignRoleRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	member, err := h.svc.AssignRole(c.Request().Context(), p, c.Param("id"), rolemodel.CourseRole(req.CourseRole))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, member)
}

// AddGroupMember handles POST /submission-groups/:id/members.
func (h *Handler) AddGroupMember(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	var req AddGroupMemberRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	groupID := c.Param("id")
	if err := h.requireGroupStaff(c, p, groupID); err != nil {
		return err
	}

	member, err := h.svc.AddGroupMember(c.Request().Context(), groupID, req.CourseMemberID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

// RemoveGroupMember handles DELETE /submission-groups/:id/members/:memberId.
func (h *Handler) RemoveGroupMember(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	groupID := c.Param("id")
	if err := h.requireGroupStaff(c, p, groupID); err != nil {
		return err
	}

	if err := h.svc.RemoveGroupMember(c.Request().Context(), groupID, c.Param("memberId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// requireGroupStaff allows admins and holders of at least tutor in the
// group's course. Everyone else sees a not-found.
func (h *Handler) requireGroupStaff(c echo.Context, p *rolemodel.Principal, groupID string) error {
	if p.IsAdmin {
		return nil
	}
	courseID, err := h.svc.GroupCourseID(c.Request().Context(), groupID)
	if err != nil {
		return err
	}
	if !p.HasCourseRole(courseID, rolemodel.RoleTutor) {
		return apperror.NewNotFound("submission group", groupID)
	}
	return nil
}
