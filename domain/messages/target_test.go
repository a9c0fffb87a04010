package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/pkg/apperror"
)

func strPtr(s string) *string { return &s }

func TestDeriveTargetDefaultsToAuthor(t *testing.T) {
	target, err := DeriveTarget(&CreateMessageRequest{Title: "hi", Content: "hi"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, Target{Scope: ScopeUser, ID: "user-1"}, target)
}

func TestDeriveTargetSingleField(t *testing.T) {
	target, err := DeriveTarget(&CreateMessageRequest{
		Title: "hi", Content: "hi", CourseID: strPtr("course-1"),
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, Target{Scope: ScopeCourse, ID: "course-1"}, target)
}

func TestDeriveTargetRejectsMultipleFields(t *testing.T) {
	_, err := DeriveTarget(&CreateMessageRequest{
		Title:    "hi",
		Content:  "hi",
		CourseID: strPtr("course-1"),
		UserID:   strPtr("user-2"),
	}, "user-1")
	require.Error(t, err)

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_001", appErr.Code)
}

func TestTargetRoundTrip(t *testing.T) {
	targets := []Target{
		{Scope: ScopeUser, ID: "u"},
		{Scope: ScopeCourseMember, ID: "cm"},
		{Scope: ScopeSubmissionGroup, ID: "sg"},
		{Scope: ScopeCourseGroup, ID: "cg"},
		{Scope: ScopeCourseContent, ID: "cc"},
		{Scope: ScopeCourse, ID: "c"},
	}
	for _, target := range targets {
		msg := &Message{}
		applyTarget(msg, target)
		assert.Equal(t, target.Scope, msg.Scope)
		assert.Equal(t, target, TargetOfMessage(msg))
	}
}

func TestTargetChannel(t *testing.T) {
	target := Target{Scope: ScopeSubmissionGroup, ID: "g1"}
	assert.Equal(t, "submission_group:g1", target.Channel())
}

func TestTagPattern(t *testing.T) {
	assert.Equal(t, "%#course::algo101%", TagPattern("#course::algo101"))
	assert.Equal(t, "%#course::%", TagPattern("#course::*"))
	assert.Equal(t, `%#topic::a\%b%`, TagPattern("#topic::a%b"))
	assert.Equal(t, `%#course\_group::x%`, TagPattern("#course_group::x"))
}
