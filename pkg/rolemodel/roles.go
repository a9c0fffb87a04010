// Package rolemodel defines the authorization subject (Principal), the
// course role hierarchy and the claim model shared by the authentication
// providers and the permission engine.
package rolemodel

// CourseRole is a per-course role with a strict level ordering.
type CourseRole string

const (
	RoleStudent    CourseRole = "_student"
	RoleTutor      CourseRole = "_tutor"
	RoleLecturer   CourseRole = "_lecturer"
	RoleMaintainer CourseRole = "_maintainer"
	RoleOwner      CourseRole = "_owner"
)

// System roles assignable globally via user_roles.
const (
	SystemRoleAdmin       = "_admin"
	SystemRoleUserManager = "_user_manager"
)

// courseRoleLevels orders course roles; higher levels include lower ones.
var courseRoleLevels = map[CourseRole]int{
	RoleStudent:    1,
	RoleTutor:      2,
	RoleLecturer:   3,
	RoleMaintainer: 4,
	RoleOwner:      5,
}

// orderedCourseRoles lists roles ascending by level.
var orderedCourseRoles = []CourseRole{
	RoleStudent, RoleTutor, RoleLecturer, RoleMaintainer, RoleOwner,
}

// Level returns the ordinal of a course role, or 0 for unknown roles.
func (r CourseRole) Level() int {
	return courseRoleLevels[r]
}

// Valid reports whether r is a known course role.
func (r CourseRole) Valid() bool {
	_, ok := courseRoleLevels[r]
	return ok
}

// AtLeast reports whether r is at or above minimum in the hierarchy.
func (r CourseRole) AtLeast(minimum CourseRole) bool {
	return r.Valid() && minimum.Valid() && r.Level() >= minimum.Level()
}

// AllowedCourseRoles expands the hierarchy to every role at or above minimum.
func AllowedCourseRoles(minimum CourseRole) []CourseRole {
	var out []CourseRole
	for _, r := range orderedCourseRoles {
		if r.Level() >= minimum.Level() {
			out = append(out, r)
		}
	}
	return out
}

// CanAssignRole reports whether an actor holding actorRole may assign
// targetRole to a member currently holding targetCurrent. The actor must be
// at or above the role being assigned and strictly above the target's
// current role.
func CanAssignRole(actorRole, targetRole, targetCurrent CourseRole) bool {
	if !actorRole.Valid() || !targetRole.Valid() {
		return false
	}
	if actorRole.Level() < targetRole.Level() {
		return false
	}
	// A missing current role has level 0 and can always be raised.
	return targetCurrent.Level() < actorRole.Level()
}

// Claim is a (resource, action) pair granted by a system role.
type Claim struct {
	Resource string
	Action   string
}
