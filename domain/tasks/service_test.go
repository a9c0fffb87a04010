package tasks

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

type stubGateway struct {
	submitted  []Submission
	cancelled  []string
	statusByID map[string]*TaskInfo
}

func (g *stubGateway) Submit(ctx context.Context, sub Submission) (string, error) {
	g.submitted = append(g.submitted, sub)
	return "wf-1", nil
}

func (g *stubGateway) GetStatus(ctx context.Context, id string) (*TaskInfo, error) {
	if info, ok := g.statusByID[id]; ok {
		return info, nil
	}
	return nil, apperror.NewNotFound("workflow", id)
}

func (g *stubGateway) GetResult(ctx context.Context, id string) (*TaskResult, error) {
	return &TaskResult{WorkflowID: id}, nil
}

func (g *stubGateway) Cancel(ctx context.Context, id string) (bool, error) {
	g.cancelled = append(g.cancelled, id)
	return true, nil
}

func (g *stubGateway) List(ctx context.Context, limit, offset int, state TaskState) ([]*TaskInfo, int, error) {
	return nil, 0, nil
}

func newTestService(t *testing.T) (*Service, *stubGateway) {
	t.Helper()
	tracker, _ := newTestTracker(t)
	gw := &stubGateway{statusByID: map[string]*TaskInfo{}}
	return NewService(gw, tracker, slog.Default()), gw
}

func TestSubmitAndTrack(t *testing.T) {
	svc, gw := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitAndTrack(ctx, Submission{TaskName: "grade_submission"}, "user-1", TrackerTags{
		CourseID: strPtr("course-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "wf-1", id)
	require.Len(t, gw.submitted, 1)

	// The tags land in the tracker; user id defaults to the submitter.
	entry, err := svc.tracker.Get(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, "course-1", *entry.CourseID)
	assert.WithinDuration(t, time.Now(), entry.CreatedAt, time.Minute)
}

func TestStatusHiddenWithoutAccess(t *testing.T) {
	svc, gw := newTestService(t)
	ctx := context.Background()
	gw.statusByID["wf-1"] = &TaskInfo{WorkflowID: "wf-1", State: StatePending}

	_, err := svc.SubmitAndTrack(ctx, Submission{TaskName: "grade_submission"}, "user-1", TrackerTags{})
	require.NoError(t, err)

	owner := rolemodel.NewPrincipal("user-1")
	info, err := svc.Status(ctx, owner, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, StatePending, info.State)

	// Other users get a not-found, never a forbidden.
	stranger := rolemodel.NewPrincipal("user-2")
	_, err = svc.Status(ctx, stranger, "wf-1")
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NF_001", appErr.Code)
}

func TestAdminFallsThroughExpiredEntry(t *testing.T) {
	svc, gw := newTestService(t)
	ctx := context.Background()
	gw.statusByID["wf-old"] = &TaskInfo{WorkflowID: "wf-old", State: StateCompleted}

	// No tracker entry exists, only the durable row.
	admin := rolemodel.NewPrincipal("admin-1")
	admin.IsAdmin = true
	info, err := svc.Status(ctx, admin, "wf-old")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, info.State)

	owner := rolemodel.NewPrincipal("user-1")
	_, err = svc.Status(ctx, owner, "wf-old")
	require.Error(t, err)
}

func TestCancelRequiresAccess(t *testing.T) {
	svc, gw := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitAndTrack(ctx, Submission{TaskName: "grade_submission"}, "user-1", TrackerTags{})
	require.NoError(t, err)

	stranger := rolemodel.NewPrincipal("user-2")
	_, err = svc.Cancel(ctx, stranger, "wf-1")
	require.Error(t, err)
	assert.Empty(t, gw.cancelled)

	owner := rolemodel.NewPrincipal("user-1")
	ok, err := svc.Cancel(ctx, owner, "wf-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"wf-1"}, gw.cancelled)
}
