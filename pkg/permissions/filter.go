package permissions

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Filter is the query-shaping dual of Permitted. It is ANDed into list and
// get queries and never overrides user-supplied filters.
type Filter struct {
	// Unrestricted: admin or general claim; no constraint added.
	Unrestricted bool
	// Forbidden: nothing matches; short-circuit to an empty result.
	Forbidden bool

	reach     Reach
	courseIDs []string
	userID    string
	custom    func(q *bun.SelectQuery) *bun.SelectQuery
}

// Forbidden filter singleton-ish helper.
func forbiddenFilter() Filter { return Filter{Forbidden: true} }

// OwnerFilter scopes a query to rows owned by the user. Guard hooks use it to
// widen a forbidden filter into owner-only access.
func OwnerFilter(userID string) Filter {
	return Filter{reach: ReachOwner, userID: userID}
}

// CustomFilter wraps an arbitrary predicate for guard hooks whose owner
// relation is not a plain user_id column.
func CustomFilter(apply func(q *bun.SelectQuery) *bun.SelectQuery) Filter {
	return Filter{custom: apply}
}

// FilterFor computes the predicate for listing/getting entities of resource.
func (e *Engine) FilterFor(ctx context.Context, p *rolemodel.Principal, resource, action string) Filter {
	if p == nil {
		return forbiddenFilter()
	}
	if p.IsAdmin || p.HasClaim(resource, action) {
		return Filter{Unrestricted: true}
	}

	rule, ok := e.rules[resource]
	if !ok {
		return forbiddenFilter()
	}

	if rule.Reach == ReachOwner {
		return Filter{reach: ReachOwner, userID: p.UserID}
	}

	minRole, ok := rule.MinRole[action]
	if !ok {
		return forbiddenFilter()
	}

	courses := e.coursesWithRole(ctx, p, minRole)
	if len(courses) == 0 {
		return forbiddenFilter()
	}
	return Filter{reach: rule.Reach, courseIDs: courses}
}

// Apply adds the predicate to a select query. The caller must short-circuit
// on Forbidden; Apply adds a contradiction as a safety net.
func (f Filter) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.Unrestricted {
		return q
	}
	if f.Forbidden {
		return q.Where("1 = 0")
	}
	if f.custom != nil {
		return f.custom(q)
	}

	switch f.reach {
	case ReachOwner:
		return q.Where("user_id = ?", f.userID)
	case ReachDirect:
		return q.Where("course_id IN (?)", bun.In(f.courseIDs))
	case ReachViaContent:
		return q.Where("course_content_id IN (SELECT id FROM course_contents WHERE course_id IN (?))", bun.In(f.courseIDs))
	case ReachViaMember:
		return q.Where("course_member_id IN (SELECT id FROM course_members WHERE course_id IN (?))", bun.In(f.courseIDs))
	case ReachSelfCourse:
		return q.Where("id IN (?)", bun.In(f.courseIDs))
	case ReachCourseFamily:
		return q.Where("id IN (SELECT course_family_id FROM courses WHERE id IN (?))", bun.In(f.courseIDs))
	case ReachOrganization:
		return q.Where(`id IN (
			SELECT cf.organization_id FROM course_families cf
			INNER JOIN courses c ON c.course_family_id = cf.id
			WHERE c.id IN (?))`, bun.In(f.courseIDs))
	default:
		return q.Where("1 = 0")
	}
}

// CourseIDs exposes the matched course set for callers that page over Redis
// indexes instead of SQL (the task tracker).
func (f Filter) CourseIDs() []string {
	return f.courseIDs
}
