package tasks

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/pkg/rolemodel"
)

func newTestTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTracker(rdb, slog.Default()), mr
}

func strPtr(s string) *string { return &s }

func entryAt(id, userID string, courseID *string, at time.Time) *TrackerEntry {
	return &TrackerEntry{
		WorkflowID: id,
		TaskName:   "grade_submission",
		CreatedAt:  at,
		CreatedBy:  userID,
		UserID:     userID,
		CourseID:   courseID,
	}
}

func TestTrackerTrackAndGet(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	entry := entryAt("wf-1", "user-1", strPtr("course-1"), time.Now().UTC())
	entry.Description = strPtr("grading run")
	require.NoError(t, tracker.Track(ctx, entry))

	got, err := tracker.Get(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "grade_submission", got.TaskName)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "grading run", *got.Description)

	missing, err := tracker.Get(ctx, "wf-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTrackerEntryExpires(t *testing.T) {
	tracker, mr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Track(ctx, entryAt("wf-1", "user-1", nil, time.Now().UTC())))

	mr.FastForward(trackerTTL + time.Minute)

	got, err := tracker.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTrackerCanAccess(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Track(ctx, entryAt("wf-1", "user-1", strPtr("course-1"), time.Now().UTC())))

	owner := rolemodel.NewPrincipal("user-1")
	ok, entry, err := tracker.CanAccess(ctx, owner, "wf-1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, entry)

	admin := rolemodel.NewPrincipal("admin-1")
	admin.IsAdmin = true
	ok, _, err = tracker.CanAccess(ctx, admin, "wf-1")
	require.NoError(t, err)
	assert.True(t, ok)

	lecturer := rolemodel.NewPrincipal("user-2")
	lecturer.CourseRoles["course-1"] = rolemodel.RoleLecturer
	ok, _, err = tracker.CanAccess(ctx, lecturer, "wf-1")
	require.NoError(t, err)
	assert.True(t, ok)

	student := rolemodel.NewPrincipal("user-3")
	student.CourseRoles["course-1"] = rolemodel.RoleStudent
	ok, _, err = tracker.CanAccess(ctx, student, "wf-1")
	require.NoError(t, err)
	assert.False(t, ok)

	stranger := rolemodel.NewPrincipal("user-4")
	ok, _, err = tracker.CanAccess(ctx, stranger, "wf-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = tracker.CanAccess(ctx, admin, "wf-unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrackerListAccessible(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()
	base := time.Now().UTC()

	// user-1 owns two, a third lives in course-1, a fourth is unrelated.
	require.NoError(t, tracker.Track(ctx, entryAt("wf-1", "user-1", nil, base.Add(-3*time.Minute))))
	require.NoError(t, tracker.Track(ctx, entryAt("wf-2", "user-1", nil, base.Add(-2*time.Minute))))
	require.NoError(t, tracker.Track(ctx, entryAt("wf-3", "user-2", strPtr("course-1"), base.Add(-1*time.Minute))))
	require.NoError(t, tracker.Track(ctx, entryAt("wf-4", "user-3", strPtr("course-2"), base)))

	owner := rolemodel.NewPrincipal("user-1")
	entries, total, err := tracker.ListAccessible(ctx, owner, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "wf-2", entries[0].WorkflowID)
	assert.Equal(t, "wf-1", entries[1].WorkflowID)

	// Lecturer in course-1 sees own plus the course's.
	lecturer := rolemodel.NewPrincipal("user-1")
	lecturer.CourseRoles["course-1"] = rolemodel.RoleLecturer
	entries, total, err = tracker.ListAccessible(ctx, lecturer, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "wf-3", entries[0].WorkflowID)

	admin := rolemodel.NewPrincipal("admin-1")
	admin.IsAdmin = true
	_, total, err = tracker.ListAccessible(ctx, admin, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	// Paging.
	entries, total, err = tracker.ListAccessible(ctx, admin, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "wf-2", entries[0].WorkflowID)

	entries, _, err = tracker.ListAccessible(ctx, admin, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrackerPrunesDanglingIndexEntries(t *testing.T) {
	tracker, mr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Track(ctx, entryAt("wf-1", "user-1", nil, time.Now().UTC())))
	require.NoError(t, tracker.Track(ctx, entryAt("wf-2", "user-1", nil, time.Now().UTC())))

	// Drop one entry behind the index's back.
	mr.Del(entryKeyPrefix + "wf-1")

	owner := rolemodel.NewPrincipal("user-1")
	entries, total, err := tracker.ListAccessible(ctx, owner, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "wf-2", entries[0].WorkflowID)

	members, err := mr.Members(idxUserPrefix + "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"wf-2"}, members)
}
