package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Service combines the workflow gateway with the tracker: every submission
// goes through both, and every read is gated by the tracker's access check.
type Service struct {
	gateway Gateway
	tracker *Tracker
	log     *slog.Logger
}

// NewService creates the tasks service.
func NewService(gateway Gateway, tracker *Tracker, log *slog.Logger) *Service {
	return &Service{
		gateway: gateway,
		tracker: tracker,
		log:     log.With(logger.Scope("tasks.svc")),
	}
}

// SubmitAndTrack submits a workflow and records its permission tags. The
// tracker write happens after the durable submit; if it fails the workflow
// still runs but only appears on the admin surface.
func (s *Service) SubmitAndTrack(ctx context.Context, sub Submission, createdBy string, tags TrackerTags) (string, error) {
	workflowID, err := s.gateway.Submit(ctx, sub)
	if err != nil {
		return "", err
	}

	userID := tags.UserID
	if userID == "" {
		userID = createdBy
	}
	entry := &TrackerEntry{
		WorkflowID:     workflowID,
		TaskName:       sub.TaskName,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      createdBy,
		UserID:         userID,
		CourseID:       tags.CourseID,
		OrganizationID: tags.OrganizationID,
		EntityType:     tags.EntityType,
		EntityID:       tags.EntityID,
		Description:    tags.Description,
	}
	if err := s.tracker.Track(ctx, entry); err != nil {
		s.log.Error("tracker write failed", logger.Error(err), slog.String("workflow_id", workflowID))
	}

	return workflowID, nil
}

// TrackerTags carries the permission tags and annotations of a submission.
type TrackerTags struct {
	UserID         string
	CourseID       *string
	OrganizationID *string
	EntityType     *string
	EntityID       *string
	Description    *string
}

// Get returns the tracker entry together with the current status. Callers
// without access get a not-found, never a forbidden.
func (s *Service) Get(ctx context.Context, p *rolemodel.Principal, workflowID string) (*TrackerEntry, *TaskInfo, error) {
	entry, err := s.authorize(ctx, p, workflowID)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.gateway.GetStatus(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}
	return entry, info, nil
}

// Status returns the status projection of an accessible workflow.
func (s *Service) Status(ctx context.Context, p *rolemodel.Principal, workflowID string) (*TaskInfo, error) {
	if _, err := s.authorize(ctx, p, workflowID); err != nil {
		return nil, err
	}
	return s.gateway.GetStatus(ctx, workflowID)
}

// Result returns the outcome of an accessible workflow.
func (s *Service) Result(ctx context.Context, p *rolemodel.Principal, workflowID string) (*TaskResult, error) {
	if _, err := s.authorize(ctx, p, workflowID); err != nil {
		return nil, err
	}
	return s.gateway.GetResult(ctx, workflowID)
}

// Cancel cancels an accessible pending workflow.
func (s *Service) Cancel(ctx context.Context, p *rolemodel.Principal, workflowID string) (bool, error) {
	if _, err := s.authorize(ctx, p, workflowID); err != nil {
		return false, err
	}
	return s.gateway.Cancel(ctx, workflowID)
}

// List returns the tracker entries visible to the principal, newest first.
func (s *Service) List(ctx context.Context, p *rolemodel.Principal, limit, offset int) ([]TrackerEntry, int, error) {
	return s.tracker.ListAccessible(ctx, p, limit, offset)
}

// authorize resolves the entry and hides inaccessible or expired workflows
// behind a not-found. Admins fall through to the durable store when the
// tracker entry has already expired.
func (s *Service) authorize(ctx context.Context, p *rolemodel.Principal, workflowID string) (*TrackerEntry, error) {
	ok, entry, err := s.tracker.CanAccess(ctx, p, workflowID)
	if err != nil {
		return nil, err
	}
	if ok {
		return entry, nil
	}
	if p.IsAdmin {
		return nil, nil
	}
	return nil, apperror.NewNotFound("task", workflowID)
}
