// Package submissions covers the artifact lifecycle: presigned upload,
// submission for grading, test results, grades and reviews.
package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/domain/courses"
	"github.com/codecampus/campus-core/domain/tasks"
	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/internal/storage"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// GradingTaskName is the workflow dispatched when an artifact is submitted.
const GradingTaskName = "grade_submission"

const uploadURLTTL = 15 * time.Minute

// Service handles the artifact operations outside the uniform CRUD shape.
type Service struct {
	db      bun.IDB
	courses *courses.Service
	store   *storage.Service
	tasks   *tasks.Service
	log     *slog.Logger
}

// NewService creates the submissions service.
func NewService(db bun.IDB, coursesSvc *courses.Service, store *storage.Service, tasksSvc *tasks.Service, log *slog.Logger) *Service {
	return &Service{
		db:      db,
		courses: coursesSvc,
		store:   store,
		tasks:   tasksSvc,
		log:     log.With(logger.Scope("submissions.svc")),
	}
}

// FindArtifact returns an artifact by id, archived ones excluded.
func (s *Service) FindArtifact(ctx context.Context, artifactID string) (*SubmissionArtifact, error) {
	sa := new(SubmissionArtifact)
	err := s.db.NewSelect().Model(sa).
		Where("id = ?", artifactID).
		Where("archived_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("artifact", artifactID)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return sa, nil
}

// CreateUpload registers a new artifact in a submission group and returns a
// presigned PUT URL. The caller uploads the bundle directly to the blob
// store; the API server never sees the bytes.
func (s *Service) CreateUpload(ctx context.Context, p *rolemodel.Principal, groupID string, req *UploadRequest) (*UploadResponse, error) {
	if !s.store.Enabled() {
		return nil, apperror.ErrServiceUnavailable.WithMessage("Artifact storage is not available")
	}

	courseID, err := s.courses.GroupCourseID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireGroupAccess(ctx, p, groupID, courseID); err != nil {
		return nil, err
	}

	props := req.Properties
	if len(props) == 0 {
		props = json.RawMessage("{}")
	}
	artifact := &SubmissionArtifact{
		SubmissionGroupID: groupID,
		CourseID:          courseID,
		Bucket:            s.store.Bucket(),
		Key:               storage.ArtifactKey(courseID, groupID, req.Filename),
		Filename:          req.Filename,
		Properties:        props,
		CreatedBy:         &p.UserID,
	}
	if _, err := s.db.NewInsert().Model(artifact).Exec(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	url, err := s.store.SignedUploadURL(ctx, artifact.Key, uploadURLTTL)
	if err != nil {
		return nil, apperror.ErrServiceUnavailable.WithInternal(err)
	}

	s.log.Info("artifact upload registered",
		slog.String("artifact_id", artifact.ID),
		slog.String("group_id", groupID),
	)
	return &UploadResponse{Artifact: artifact, UploadURL: url}, nil
}

// ListGroupArtifacts returns the artifacts of a submission group. Members
// and course staff see the same rows; everyone else gets a not-found.
func (s *Service) ListGroupArtifacts(ctx context.Context, p *rolemodel.Principal, groupID string) ([]SubmissionArtifact, error) {
	courseID, err := s.courses.GroupCourseID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireGroupAccess(ctx, p, groupID, courseID); err != nil {
		return nil, err
	}

	artifacts := make([]SubmissionArtifact, 0)
	err = s.db.NewSelect().Model(&artifacts).
		Where("submission_group_id = ?", groupID).
		Where("archived_at IS NULL").
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return artifacts, nil
}

// ListArtifactResults returns the test runs of an artifact the caller can see.
func (s *Service) ListArtifactResults(ctx context.Context, p *rolemodel.Principal, artifactID string) ([]Result, error) {
	if _, err := s.authorizeArtifact(ctx, p, artifactID); err != nil {
		return nil, err
	}
	results := make([]Result, 0)
	err := s.db.NewSelect().Model(&results).
		Where("submission_artifact_id = ?", artifactID).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return results, nil
}

// ListArtifactGrades returns the grades of an artifact the caller can see.
func (s *Service) ListArtifactGrades(ctx context.Context, p *rolemodel.Principal, artifactID string) ([]SubmissionGrade, error) {
	if _, err := s.authorizeArtifact(ctx, p, artifactID); err != nil {
		return nil, err
	}
	grades := make([]SubmissionGrade, 0)
	err := s.db.NewSelect().Model(&grades).
		Where("submission_artifact_id = ?", artifactID).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return grades, nil
}

// ListArtifactReviews returns the reviews of an artifact the caller can see.
func (s *Service) ListArtifactReviews(ctx context.Context, p *rolemodel.Principal, artifactID string) ([]SubmissionReview, error) {
	if _, err := s.authorizeArtifact(ctx, p, artifactID); err != nil {
		return nil, err
	}
	reviews := make([]SubmissionReview, 0)
	err := s.db.NewSelect().Model(&reviews).
		Where("submission_artifact_id = ?", artifactID).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return reviews, nil
}

// Submit marks an artifact as submitted and dispatches the grading workflow.
// The group row is locked so the submission cap check and the flag flip are
// atomic.
func (s *Service) Submit(ctx context.Context, p *rolemodel.Principal, artifactID string) (*SubmissionArtifact, string, error) {
	artifact, err := s.authorizeArtifact(ctx, p, artifactID)
	if err != nil {
		return nil, "", err
	}
	if artifact.Submit {
		return nil, "", apperror.NewConflict("CONF_001", "Artifact has already been submitted")
	}

	exists, err := s.store.Exists(ctx, artifact.Key)
	if err != nil {
		return nil, "", apperror.ErrServiceUnavailable.WithInternal(err)
	}
	if !exists {
		return nil, "", apperror.ErrBadRequest.WithMessage("Bundle has not been uploaded yet")
	}

	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		group := new(courses.SubmissionGroup)
		err := tx.NewSelect().Model(group).
			Where("id = ?", artifact.SubmissionGroupID).
			Where("archived_at IS NULL").
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NewNotFound("submission group", artifact.SubmissionGroupID)
		}
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}

		if group.MaxSubmissions != nil {
			submitted, err := tx.NewSelect().Model((*SubmissionArtifact)(nil)).
				Where("submission_group_id = ?", group.ID).
				Where("submit = TRUE").
				Where("archived_at IS NULL").
				Count(ctx)
			if err != nil {
				return apperror.ErrDatabase.WithInternal(err)
			}
			if submitted >= *group.MaxSubmissions {
				return apperror.NewConflict("CONF_001", "Submission limit reached for this group")
			}
		}

		_, err = tx.NewUpdate().Model(artifact).
			WherePK().
			Set("submit = TRUE").
			Set("version = version + 1").
			Set("updated_at = now()").
			Set("updated_by = ?", p.UserID).
			Exec(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		artifact.Submit = true
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	params, _ := json.Marshal(map[string]string{
		"artifact_id":         artifact.ID,
		"submission_group_id": artifact.SubmissionGroupID,
		"course_id":           artifact.CourseID,
		"bucket":              artifact.Bucket,
		"key":                 artifact.Key,
	})
	entityType := "submission_artifact"
	description := fmt.Sprintf("Grading %s", artifact.Filename)
	workflowID, err := s.tasks.SubmitAndTrack(ctx,
		tasks.Submission{TaskName: GradingTaskName, Parameters: params},
		p.UserID,
		tasks.TrackerTags{
			CourseID:    &artifact.CourseID,
			EntityType:  &entityType,
			EntityID:    &artifact.ID,
			Description: &description,
		},
	)
	if err != nil {
		// The submit flag stays set; grading can be re-dispatched.
		s.log.Error("grading dispatch failed", logger.Error(err), slog.String("artifact_id", artifact.ID))
		return nil, "", err
	}

	s.log.Info("artifact submitted",
		slog.String("artifact_id", artifact.ID),
		slog.String("workflow_id", workflowID),
	)
	return artifact, workflowID, nil
}

// DownloadURL returns a presigned GET URL for an artifact bundle.
func (s *Service) DownloadURL(ctx context.Context, p *rolemodel.Principal, artifactID string) (string, error) {
	if !s.store.Enabled() {
		return "", apperror.ErrServiceUnavailable.WithMessage("Artifact storage is not available")
	}

	artifact, err := s.authorizeArtifact(ctx, p, artifactID)
	if err != nil {
		return "", err
	}

	url, err := s.store.SignedDownloadURL(ctx, artifact.Key, storage.SignedDownloadURLOptions{
		ResponseContentDisposition: fmt.Sprintf("attachment; filename=%q", artifact.Filename),
	})
	if err != nil {
		return "", apperror.ErrServiceUnavailable.WithInternal(err)
	}
	return url, nil
}

// authorizeArtifact loads an artifact and checks group access in one step.
func (s *Service) authorizeArtifact(ctx context.Context, p *rolemodel.Principal, artifactID string) (*SubmissionArtifact, error) {
	artifact, err := s.FindArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if err := s.requireGroupAccess(ctx, p, artifact.SubmissionGroupID, artifact.CourseID); err != nil {
		return nil, err
	}
	return artifact, nil
}

// requireGroupAccess admits group members and course staff from tutor up.
// Everyone else gets a not-found so inaccessible artifacts stay invisible.
func (s *Service) requireGroupAccess(ctx context.Context, p *rolemodel.Principal, groupID, courseID string) error {
	if p.IsAdmin || p.HasCourseRole(courseID, rolemodel.RoleTutor) {
		return nil
	}
	member, err := s.courses.IsGroupMember(ctx, groupID, p.UserID)
	if err != nil {
		return err
	}
	if !member {
		return apperror.NewNotFound("submission group", groupID)
	}
	return nil
}
