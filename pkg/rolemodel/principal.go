package rolemodel

// Principal is the immutable authorization subject for one request.
type Principal struct {
	UserID    string
	Username  string
	IsAdmin   bool
	IsService bool

	// GeneralClaims holds (resource, action) pairs granted by system roles.
	GeneralClaims map[Claim]struct{}

	// CourseRoles maps course id to the highest role held in that course.
	CourseRoles map[string]CourseRole
}

// NewPrincipal builds a Principal with initialized maps.
func NewPrincipal(userID string) *Principal {
	return &Principal{
		UserID:        userID,
		GeneralClaims: map[Claim]struct{}{},
		CourseRoles:   map[string]CourseRole{},
	}
}

// HasClaim reports whether a general claim covers (resource, action).
func (p *Principal) HasClaim(resource, action string) bool {
	if p.IsAdmin {
		return true
	}
	_, ok := p.GeneralClaims[Claim{Resource: resource, Action: action}]
	return ok
}

// HighestCourseRole returns the role held in the course, or "" when the
// principal is not a member.
func (p *Principal) HighestCourseRole(courseID string) CourseRole {
	return p.CourseRoles[courseID]
}

// HasCourseRole reports whether the principal holds at least minimum in the
// course. Admins always qualify.
func (p *Principal) HasCourseRole(courseID string, minimum CourseRole) bool {
	if p.IsAdmin {
		return true
	}
	return p.CourseRoles[courseID].AtLeast(minimum)
}

// CoursesWithRole returns every course id in which the principal holds at
// least minimum.
func (p *Principal) CoursesWithRole(minimum CourseRole) []string {
	var out []string
	for courseID, role := range p.CourseRoles {
		if role.AtLeast(minimum) {
			out = append(out, courseID)
		}
	}
	return out
}
