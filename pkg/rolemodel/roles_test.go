package rolemodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCourseRoleOrdering(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleStudent))
	assert.True(t, RoleLecturer.AtLeast(RoleLecturer))
	assert.False(t, RoleStudent.AtLeast(RoleTutor))
	assert.False(t, CourseRole("_janitor").AtLeast(RoleStudent))
	assert.False(t, RoleOwner.AtLeast(CourseRole("")))
}

func TestAllowedCourseRoles(t *testing.T) {
	assert.Equal(t,
		[]CourseRole{RoleLecturer, RoleMaintainer, RoleOwner},
		AllowedCourseRoles(RoleLecturer))
	assert.Len(t, AllowedCourseRoles(RoleStudent), 5)
}

func TestCanAssignRole(t *testing.T) {
	// A lecturer can promote a student to tutor.
	assert.True(t, CanAssignRole(RoleLecturer, RoleTutor, RoleStudent))
	// But cannot hand out a role above their own.
	assert.False(t, CanAssignRole(RoleLecturer, RoleOwner, RoleStudent))
	// And cannot touch a peer at their own level.
	assert.False(t, CanAssignRole(RoleLecturer, RoleTutor, RoleLecturer))
	// A fresh member (no current role) can be raised.
	assert.True(t, CanAssignRole(RoleOwner, RoleOwner, CourseRole("")))
	// Unknown roles never assign.
	assert.False(t, CanAssignRole(CourseRole("x"), RoleStudent, RoleStudent))
}

func TestPrincipalClaims(t *testing.T) {
	p := NewPrincipal("u1")
	assert.False(t, p.HasClaim("users", "update"))

	p.GeneralClaims[Claim{Resource: "users", Action: "update"}] = struct{}{}
	assert.True(t, p.HasClaim("users", "update"))
	assert.False(t, p.HasClaim("users", "delete"))

	admin := NewPrincipal("u2")
	admin.IsAdmin = true
	assert.True(t, admin.HasClaim("anything", "at_all"))
}

func TestPrincipalCourseRoles(t *testing.T) {
	p := NewPrincipal("u1")
	p.CourseRoles["c1"] = RoleTutor
	p.CourseRoles["c2"] = RoleStudent

	assert.True(t, p.HasCourseRole("c1", RoleStudent))
	assert.True(t, p.HasCourseRole("c1", RoleTutor))
	assert.False(t, p.HasCourseRole("c1", RoleLecturer))
	assert.False(t, p.HasCourseRole("missing", RoleStudent))

	assert.ElementsMatch(t, []string{"c1", "c2"}, p.CoursesWithRole(RoleStudent))
	assert.Equal(t, []string{"c1"}, p.CoursesWithRole(RoleTutor))
	assert.Empty(t, p.CoursesWithRole(RoleOwner))

	admin := NewPrincipal("u2")
	admin.IsAdmin = true
	assert.True(t, admin.HasCourseRole("anything", RoleOwner))
}
