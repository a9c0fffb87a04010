package messages

import (
	"strings"

	"github.com/codecampus/campus-core/pkg/apperror"
)

// Target is the tagged variant behind the six nullable target columns.
type Target struct {
	Scope Scope
	ID    string
}

// targetOf collects the non-empty target fields of a request.
func targetOf(req *CreateMessageRequest) []Target {
	var ts []Target
	add := func(scope Scope, id *string) {
		if id != nil && *id != "" {
			ts = append(ts, Target{Scope: scope, ID: *id})
		}
	}
	add(ScopeUser, req.UserID)
	add(ScopeCourseMember, req.CourseMemberID)
	add(ScopeSubmissionGroup, req.SubmissionGroupID)
	add(ScopeCourseGroup, req.CourseGroupID)
	add(ScopeCourseContent, req.CourseContentID)
	add(ScopeCourse, req.CourseID)
	return ts
}

// DeriveTarget validates the exactly-one-target invariant. Zero targets
// defaults to a note addressed at the author.
func DeriveTarget(req *CreateMessageRequest, authorID string) (Target, error) {
	ts := targetOf(req)
	switch len(ts) {
	case 0:
		return Target{Scope: ScopeUser, ID: authorID}, nil
	case 1:
		return ts[0], nil
	default:
		return Target{}, apperror.NewValidation(apperror.FieldError{
			Field:   "target",
			Message: "at most one target field may be set",
			Type:    "exclusive",
		})
	}
}

// TargetOfMessage reads the target back off a stored message.
func TargetOfMessage(m *Message) Target {
	switch m.Scope {
	case ScopeUser:
		return Target{Scope: ScopeUser, ID: deref(m.TargetUserID)}
	case ScopeCourseMember:
		return Target{Scope: ScopeCourseMember, ID: deref(m.CourseMemberID)}
	case ScopeSubmissionGroup:
		return Target{Scope: ScopeSubmissionGroup, ID: deref(m.SubmissionGroupID)}
	case ScopeCourseGroup:
		return Target{Scope: ScopeCourseGroup, ID: deref(m.CourseGroupID)}
	case ScopeCourseContent:
		return Target{Scope: ScopeCourseContent, ID: deref(m.CourseContentID)}
	case ScopeCourse:
		return Target{Scope: ScopeCourse, ID: deref(m.CourseID)}
	}
	return Target{}
}

// applyTarget writes the target into its column and derives the scope.
func applyTarget(m *Message, t Target) {
	m.Scope = t.Scope
	id := t.ID
	switch t.Scope {
	case ScopeUser:
		m.TargetUserID = &id
	case ScopeCourseMember:
		m.CourseMemberID = &id
	case ScopeSubmissionGroup:
		m.SubmissionGroupID = &id
	case ScopeCourseGroup:
		m.CourseGroupID = &id
	case ScopeCourseContent:
		m.CourseContentID = &id
	case ScopeCourse:
		m.CourseID = &id
	}
}

// Channel returns the realtime channel name of the target.
func (t Target) Channel() string {
	return string(t.Scope) + ":" + t.ID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TagPattern turns a `#scope::value` token into a SQL LIKE pattern. A token
// of the form `#scope::*` matches any value of that scope. LIKE
// metacharacters in the token are escaped so user input cannot widen the
// match.
func TagPattern(token string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(token)
	if strings.HasSuffix(escaped, "::*") {
		return "%" + strings.TrimSuffix(escaped, "*") + "%"
	}
	return "%" + escaped + "%"
}
