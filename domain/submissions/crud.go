package submissions

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/domain/courses"
	"github.com/codecampus/campus-core/internal/crud"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/cache"
	"github.com/codecampus/campus-core/pkg/permissions"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// ArtifactController is the CRUD surface for submission artifacts.
type ArtifactController = crud.Controller[SubmissionArtifact, UploadRequest, UpdateArtifactRequest]

// ResultController is the CRUD surface for test results.
type ResultController = crud.Controller[Result, CreateResultRequest, UpdateResultRequest]

// GradeController is the CRUD surface for grades.
type GradeController = crud.Controller[SubmissionGrade, CreateGradeRequest, UpdateGradeRequest]

// ReviewController is the CRUD surface for reviews.
type ReviewController = crud.Controller[SubmissionReview, CreateReviewRequest, UpdateReviewRequest]

// NewArtifactController wires artifacts into the dispatcher. Creation goes
// through the upload endpoint; the CRUD create is a documented stub. Students
// read their own group's rows through the group-scoped endpoints, never
// through this surface.
func NewArtifactController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
) *ArtifactController {
	desc := crud.Descriptor[SubmissionArtifact, UploadRequest, UpdateArtifactRequest]{
		Resource: "artifacts",
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *UploadRequest) (*SubmissionArtifact, error) {
			return nil, apperror.ErrNotImplemented.WithMessage("Artifacts are created through the upload endpoint")
		},
		ApplyUpdate: func(sa *SubmissionArtifact, req *UpdateArtifactRequest) error {
			if req.Properties != nil {
				sa.Properties = req.Properties
			}
			return nil
		},
		ToDTO: func(sa *SubmissionArtifact) any { return sa },
		ID:    func(sa *SubmissionArtifact) string { return sa.ID },
		FilterColumns: map[string]string{
			"submission_group_id": "submission_group_id",
			"course_id":           "course_id",
			"submit":              "submit",
		},
		DefaultOrder: "created_at DESC",
		SoftDelete:   true,
	}
	return crud.NewController(db, engine, c, events, log, desc)
}

// NewResultController wires test results into the dispatcher. Results are
// written by execution workers and course staff.
func NewResultController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
	svc *Service,
) *ResultController {
	desc := crud.Descriptor[Result, CreateResultRequest, UpdateResultRequest]{
		Resource: "results",
		GuardCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateResultRequest) error {
			artifact, err := svc.FindArtifact(ctx, req.SubmissionArtifactID)
			if err != nil {
				return err
			}
			return checkResultLimits(ctx, db, artifact, req)
		},
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateResultRequest) (*Result, error) {
			artifact, err := svc.FindArtifact(ctx, req.SubmissionArtifactID)
			if err != nil {
				return nil, err
			}
			return &Result{
				SubmissionArtifactID: req.SubmissionArtifactID,
				CourseMemberID:       req.CourseMemberID,
				CourseID:             artifact.CourseID,
				ExecutionBackend:     req.ExecutionBackend,
				Status:               req.Status,
				Score:                req.Score,
				ResultJSON:           req.ResultJSON,
				VersionIdentifier:    req.VersionIdentifier,
				CreatedBy:            &p.UserID,
			}, nil
		},
		ApplyUpdate: func(r *Result, req *UpdateResultRequest) error {
			if req.Status != nil {
				r.Status = *req.Status
			}
			if req.Score != nil {
				r.Score = req.Score
			}
			if req.ResultJSON != nil {
				r.ResultJSON = req.ResultJSON
			}
			return nil
		},
		ToDTO: func(r *Result) any { return r },
		ID:    func(r *Result) string { return r.ID },
		FilterColumns: map[string]string{
			"submission_artifact_id": "submission_artifact_id",
			"course_member_id":       "course_member_id",
			"course_id":              "course_id",
			"status":                 "status",
		},
		DefaultOrder: "created_at DESC",
	}
	return crud.NewController(db, engine, c, events, log, desc)
}

// checkResultLimits enforces the per-group run budget and the one-result-per
// version rule. A version that only produced terminal failures may be run
// again.
func checkResultLimits(ctx context.Context, db bun.IDB, artifact *SubmissionArtifact, req *CreateResultRequest) error {
	group := new(courses.SubmissionGroup)
	err := db.NewSelect().Model(group).
		Where("id = ?", artifact.SubmissionGroupID).
		Scan(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	if group.MaxTestRuns != nil {
		runs, err := db.NewSelect().Model((*Result)(nil)).
			Join("INNER JOIN submission_artifacts sa ON sa.id = r.submission_artifact_id").
			Where("sa.submission_group_id = ?", group.ID).
			Count(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		if runs >= *group.MaxTestRuns {
			return apperror.ErrRateLimited.WithMessage("Test run limit reached for this group")
		}
	}

	taken, err := db.NewSelect().Model((*Result)(nil)).
		Join("INNER JOIN submission_artifacts sa ON sa.id = r.submission_artifact_id").
		Where("sa.submission_group_id = ?", group.ID).
		Where("r.version_identifier = ?", req.VersionIdentifier).
		Where("r.status NOT IN (?, ?)", StatusFailed, StatusCrashed).
		Exists(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if taken {
		return apperror.NewConflict("CONF_003", "Version has already been tested for this group")
	}
	return nil
}

// NewGradeController wires grades into the dispatcher.
func NewGradeController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
	svc *Service,
) *GradeController {
	desc := crud.Descriptor[SubmissionGrade, CreateGradeRequest, UpdateGradeRequest]{
		Resource: "grades",
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateGradeRequest) (*SubmissionGrade, error) {
			artifact, err := svc.FindArtifact(ctx, req.SubmissionArtifactID)
			if err != nil {
				return nil, err
			}
			return &SubmissionGrade{
				SubmissionArtifactID: req.SubmissionArtifactID,
				CourseID:             artifact.CourseID,
				Grade:                req.Grade,
				Status:               req.Status,
				Feedback:             req.Feedback,
				CreatedBy:            &p.UserID,
			}, nil
		},
		ApplyUpdate: func(g *SubmissionGrade, req *UpdateGradeRequest) error {
			if req.Grade != nil {
				g.Grade = *req.Grade
			}
			if req.Status != nil {
				g.Status = *req.Status
			}
			if req.Feedback != nil {
				g.Feedback = req.Feedback
			}
			return nil
		},
		ToDTO: func(g *SubmissionGrade) any { return g },
		ID:    func(g *SubmissionGrade) string { return g.ID },
		FilterColumns: map[string]string{
			"submission_artifact_id": "submission_artifact_id",
			"course_id":              "course_id",
			"status":                 "status",
		},
		DefaultOrder: "created_at DESC",
	}
	return crud.NewController(db, engine, c, events, log, desc)
}

// NewReviewController wires reviews into the dispatcher.
func NewReviewController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
	svc *Service,
) *ReviewController {
	desc := crud.Descriptor[SubmissionReview, CreateReviewRequest, UpdateReviewRequest]{
		Resource: "reviews",
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateReviewRequest) (*SubmissionReview, error) {
			artifact, err := svc.FindArtifact(ctx, req.SubmissionArtifactID)
			if err != nil {
				return nil, err
			}
			return &SubmissionReview{
				SubmissionArtifactID: req.SubmissionArtifactID,
				CourseID:             artifact.CourseID,
				Body:                 req.Body,
				CreatedBy:            &p.UserID,
			}, nil
		},
		ApplyUpdate: func(r *SubmissionReview, req *UpdateReviewRequest) error {
			if req.Body != nil {
				r.Body = *req.Body
			}
			return nil
		},
		ToDTO: func(r *SubmissionReview) any { return r },
		ID:    func(r *SubmissionReview) string { return r.ID },
		FilterColumns: map[string]string{
			"submission_artifact_id": "submission_artifact_id",
			"course_id":              "course_id",
		},
		DefaultOrder: "created_at DESC",
	}
	return crud.NewController(db, engine, c, events, log, desc)
}
