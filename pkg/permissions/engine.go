// Package permissions implements the permission engine: scalar yes/no
// decisions and query predicates derived from one policy. Course-scoped
// resources are authorized by reachability from a course in which the
// principal holds at least the minimum role for the action.
package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/cache"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Action names used across the CRUD surface.
const (
	ActionList   = "list"
	ActionGet    = "get"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Reach describes how an entity is reachable from a course.
type Reach int

const (
	// ReachNone: not course-scoped; only admins and general claims apply.
	ReachNone Reach = iota
	// ReachDirect: the table has a course_id column.
	ReachDirect
	// ReachViaContent: the table references course_contents.
	ReachViaContent
	// ReachViaMember: the table references course_members.
	ReachViaMember
	// ReachSelfCourse: the entity is the course itself.
	ReachSelfCourse
	// ReachCourseFamily: the entity owns courses through course_family_id.
	ReachCourseFamily
	// ReachOrganization: the entity owns course families owning courses.
	ReachOrganization
	// ReachOwner: the row belongs to a user (sessions, tokens).
	ReachOwner
)

// Rule binds one resource to its reachability and per-action minimum roles.
type Rule struct {
	Resource string
	Table    string
	Reach    Reach
	// MinRole per action; an absent action is admin/claim-only.
	MinRole map[string]rolemodel.CourseRole
}

// permTTL bounds staleness of cached decisions.
const permTTL = 5 * time.Minute

// Engine answers Permitted and Filter questions.
type Engine struct {
	db    bun.IDB
	cache *cache.Cache
	log   *slog.Logger
	rules map[string]Rule
}

// NewEngine creates the engine with the given resource rules.
func NewEngine(db bun.IDB, c *cache.Cache, log *slog.Logger, rules []Rule) *Engine {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		m[r.Resource] = r
	}
	return &Engine{
		db:    db,
		cache: c,
		log:   log.With(logger.Scope("permissions")),
		rules: m,
	}
}

// userTag is the cache tag under which all of a user's decisions live.
func userTag(userID string) string {
	return "perm:user:" + userID
}

// InvalidateUser drops every cached decision for a user. Must be called on
// any role or membership mutation affecting that user.
func (e *Engine) InvalidateUser(ctx context.Context, userID string) {
	if err := e.cache.InvalidateTag(ctx, userTag(userID)); err != nil {
		e.log.Warn("permission cache invalidation failed", logger.Error(err), slog.String("user_id", userID))
	}
}

// Permitted answers whether the principal may perform action on resource,
// optionally narrowed to a single entity id.
func (e *Engine) Permitted(ctx context.Context, p *rolemodel.Principal, resource, action, id string) (bool, error) {
	if p == nil {
		return false, nil
	}
	if p.IsAdmin {
		return true, nil
	}
	if p.HasClaim(resource, action) {
		return true, nil
	}

	rule, ok := e.rules[resource]
	if !ok {
		return false, nil
	}
	minRole, ok := rule.MinRole[action]
	if !ok {
		return false, nil
	}

	if rule.Reach == ReachOwner {
		// Owner-reachable rows are filtered by user id, not course role.
		return true, nil
	}

	courses := e.coursesWithRole(ctx, p, minRole)
	if len(courses) == 0 {
		return false, nil
	}
	if id == "" {
		return true, nil
	}

	key := fmt.Sprintf("perm:dec:%s:%s:%s:%s", p.UserID, resource, action, id)
	var allowed bool
	err := e.cache.Fetch(ctx, key, permTTL, []string{userTag(p.UserID)}, &allowed, func(ctx context.Context) (any, error) {
		return e.entityReachable(ctx, rule, id, courses)
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// coursesWithRole returns the ids of courses where the principal holds at
// least minimum. Served from the in-memory principal; the cached variant is
// used by callers that only have a user id.
func (e *Engine) coursesWithRole(_ context.Context, p *rolemodel.Principal, minimum rolemodel.CourseRole) []string {
	ids := p.CoursesWithRole(minimum)
	sort.Strings(ids)
	return ids
}

// entityReachable checks whether the entity identified by id belongs to one
// of the given courses, following the rule's reachability.
func (e *Engine) entityReachable(ctx context.Context, rule Rule, id string, courses []string) (bool, error) {
	if len(courses) == 0 {
		return false, nil
	}

	var query string
	switch rule.Reach {
	case ReachDirect:
		query = fmt.Sprintf("SELECT 1 FROM %s WHERE id = ? AND course_id IN (?)", rule.Table)
	case ReachViaContent:
		query = fmt.Sprintf(`SELECT 1 FROM %s t
			INNER JOIN course_contents cc ON cc.id = t.course_content_id
			WHERE t.id = ? AND cc.course_id IN (?)`, rule.Table)
	case ReachViaMember:
		query = fmt.Sprintf(`SELECT 1 FROM %s t
			INNER JOIN course_members cm ON cm.id = t.course_member_id
			WHERE t.id = ? AND cm.course_id IN (?)`, rule.Table)
	case ReachSelfCourse:
		query = "SELECT 1 FROM courses WHERE id = ? AND id IN (?)"
	case ReachCourseFamily:
		query = `SELECT 1 FROM course_families cf
			WHERE cf.id = ? AND EXISTS (
				SELECT 1 FROM courses c WHERE c.course_family_id = cf.id AND c.id IN (?))`
	case ReachOrganization:
		query = `SELECT 1 FROM organizations o
			WHERE o.id = ? AND EXISTS (
				SELECT 1 FROM courses c
				INNER JOIN course_families cf ON cf.id = c.course_family_id
				WHERE cf.organization_id = o.id AND c.id IN (?))`
	default:
		return false, nil
	}

	var one int
	err := e.db.NewRaw(query, id, bun.In(courses)).Scan(ctx, &one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return true, nil
}
