// Package service orchestrates the clearance workflow: accepting
// submissions, gating them on prerequisite approvals, applying review
// decisions, and signalling case completion.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clearance/internal/notify"
	"clearance/internal/progress"
	"clearance/internal/stage"
	workflowmetrics "clearance/internal/workflow/metrics"
	"clearance/internal/workflow/models"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
	"clearance/pkg/platform/sentinel"
	"clearance/pkg/requestcontext"
)

// Store is the submission persistence the engine depends on. Execute and
// ExecuteByPersonAndStage must hold the record lock across validate and
// mutate; Create must fail with sentinel.ErrConflict when a record for
// (person, stage) already exists.
type Store interface {
	Create(ctx context.Context, sub *models.Submission) error
	FindByID(ctx context.Context, subID id.SubmissionID) (*models.Submission, error)
	FindByPersonAndStage(ctx context.Context, personID id.PersonID, stageID id.StageID) (*models.Submission, error)
	ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Submission, error)
	Execute(ctx context.Context, subID id.SubmissionID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error)
	ExecuteByPersonAndStage(ctx context.Context, personID id.PersonID, stageID id.StageID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error)
	StageCounts(ctx context.Context, stageID id.StageID) (models.StageCounts, error)
}

// maxUpsertAttempts bounds retries of the create-or-resubmit race: two
// concurrent first submissions to the same stage can interleave between
// the existence check and the insert.
const maxUpsertAttempts = 3

// Service is the workflow engine. Stateless between calls; all durable
// state lives in the store.
type Service struct {
	catalog   *stage.Catalog
	store     Store
	projector *progress.Projector
	notifier  notify.Sink
	logger    *slog.Logger
	metrics   *workflowmetrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *workflowmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the engine with injected dependencies. No package-level
// state; construct once at process start and pass by reference.
func New(catalog *stage.Catalog, store Store, projector *progress.Projector, notifier notify.Sink, opts ...Option) *Service {
	s := &Service{
		catalog:   catalog,
		store:     store,
		projector: projector,
		notifier:  notifier,
		logger:    slog.Default(),
		tracer:    otel.Tracer("clearance/workflow"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput is a fully-validated submission request. Handlers parse raw
// payloads into this shape at the boundary; the engine never sees
// maybe-present fields.
type SubmitInput struct {
	PersonID  id.PersonID
	StageID   id.StageID
	Documents []models.DocumentRef
	// Scope is the person's organizational scope, required for stages
	// with ScopeRequired.
	Scope string
}

// Submit accepts a new submission, an idempotent edit of an open pending
// submission, or a resubmission after rejection.
//
// Errors: CodeNotFound (unknown stage), CodeValidation (empty documents,
// missing scope), CodeGatingViolation (prerequisites not approved, with the
// unmet stages in details), CodeAlreadyFinalized (stage already approved),
// CodeInternal (storage).
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Submit",
		trace.WithAttributes(attribute.String("stage.id", in.StageID.String())))
	defer span.End()
	start := requestcontext.Now(ctx)

	st, ok := s.catalog.ByID(in.StageID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown stage").
			WithDetail("stage_id", in.StageID.String())
	}
	if err := models.ValidateDocuments(in.Documents); err != nil {
		return nil, err
	}
	if st.ScopeRequired && strings.TrimSpace(in.Scope) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "stage requires a reviewer scope").
			WithDetail("stage_id", in.StageID.String())
	}

	subs, err := s.store.ListByPerson(ctx, in.PersonID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case state")
	}
	if unmet := stage.UnmetPrerequisites(progress.StatusMap(subs), st); len(unmet) > 0 {
		if s.metrics != nil {
			s.metrics.GatingDenied.Inc()
		}
		gateErr := dErrors.New(dErrors.CodeGatingViolation, "prerequisite stages are not all approved")
		for _, p := range unmet {
			gateErr = gateErr.WithDetail("unmet:"+p.String(), "not approved")
		}
		return nil, gateErr
	}

	sub, prior, err := s.upsert(ctx, in)
	if err != nil {
		return nil, err
	}

	kind := submissionKind(prior)
	if s.metrics != nil {
		s.metrics.RecordSubmission(kind)
		s.metrics.ObserveSubmit(start)
	}
	s.logger.InfoContext(ctx, "submission accepted",
		"submission_id", sub.ID.String(),
		"stage_id", sub.StageID.String(),
		"kind", kind,
		"request_id", requestcontext.RequestID(ctx),
	)
	// Dispatch strictly after the committed write; a delivery failure must
	// not surface as a transition failure.
	s.notifyReviewers(ctx, st, sub, prior)
	return sub, nil
}

// upsert performs the atomic create-or-resubmit and reports the prior
// status (NotStarted for a fresh record).
func (s *Service) upsert(ctx context.Context, in SubmitInput) (*models.Submission, models.Status, error) {
	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		existing, err := s.store.FindByPersonAndStage(ctx, in.PersonID, in.StageID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			sub, err := models.NewSubmission(in.PersonID, in.StageID, in.Documents, in.Scope, now)
			if err != nil {
				return nil, "", err
			}
			if err := s.store.Create(ctx, sub); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					// Another submit won the insert; retry as resubmit.
					continue
				}
				return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create submission")
			}
			return sub, models.StatusNotStarted, nil
		case err != nil:
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submission")
		}

		prior := existing.Status
		sub, err := s.store.ExecuteByPersonAndStage(ctx, in.PersonID, in.StageID,
			func(cur *models.Submission) error {
				return cur.CanResubmit()
			},
			func(cur *models.Submission) {
				cur.ApplyResubmission(in.Documents, in.Scope, now)
			},
		)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Record vanished between read and write; retry as create.
				continue
			}
			if dErrors.HasCode(err, dErrors.CodeAlreadyFinalized) || dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
				return nil, "", err
			}
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update submission")
		}
		return sub, prior, nil
	}
	return nil, "", dErrors.New(dErrors.CodeInternal, "submission write conflict, retries exhausted")
}

// ApprovalResult reports the submission after approval and whether this
// approval completed the whole case, so callers can trigger downstream
// artifact generation.
type ApprovalResult struct {
	Submission   *models.Submission
	CaseComplete bool
}

// Approve finalizes a pending submission.
//
// Errors: CodeNotFound, CodeInvalidTransition (not pending),
// CodeValidation (missing reviewer), CodeInternal.
func (s *Service) Approve(ctx context.Context, subID id.SubmissionID, reviewerID id.ReviewerID, comment string) (*ApprovalResult, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Approve",
		trace.WithAttributes(attribute.String("submission.id", subID.String())))
	defer span.End()
	start := requestcontext.Now(ctx)

	if reviewerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "reviewer id is required")
	}

	now := requestcontext.Now(ctx)
	sub, err := s.store.Execute(ctx, subID,
		func(cur *models.Submission) error {
			return cur.CanApprove()
		},
		func(cur *models.Submission) {
			cur.ApplyApproval(reviewerID, comment, now)
		},
	)
	if err != nil {
		return nil, wrapReviewErr(err)
	}

	view, err := s.projector.Status(ctx, sub.PersonID)
	if err != nil {
		// The transition committed; surface the aggregate as unknown
		// rather than failing the approval.
		s.logger.ErrorContext(ctx, "case projection failed after approval",
			"submission_id", sub.ID.String(),
			"error", err,
		)
		view = &progress.CaseView{PersonID: sub.PersonID}
	}

	if s.metrics != nil {
		s.metrics.Approvals.Inc()
		if view.IsComplete {
			s.metrics.CasesCompleted.Inc()
		}
		s.metrics.ObserveReview(start)
	}
	s.logger.InfoContext(ctx, "submission approved",
		"submission_id", sub.ID.String(),
		"stage_id", sub.StageID.String(),
		"case_complete", view.IsComplete,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notifyApproval(ctx, sub, view)
	return &ApprovalResult{Submission: sub, CaseComplete: view.IsComplete}, nil
}

// Reject returns a pending submission to the person with a reason. The
// person may submit again; Rejected is not a finalized state.
//
// Errors: CodeValidation (blank reason, missing reviewer), CodeNotFound,
// CodeInvalidTransition, CodeInternal.
func (s *Service) Reject(ctx context.Context, subID id.SubmissionID, reviewerID id.ReviewerID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "workflow.Reject",
		trace.WithAttributes(attribute.String("submission.id", subID.String())))
	defer span.End()
	start := requestcontext.Now(ctx)

	if reviewerID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "reviewer id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}

	now := requestcontext.Now(ctx)
	sub, err := s.store.Execute(ctx, subID,
		func(cur *models.Submission) error {
			return cur.CanReject()
		},
		func(cur *models.Submission) {
			cur.ApplyRejection(reviewerID, reason, now)
		},
	)
	if err != nil {
		return wrapReviewErr(err)
	}

	if s.metrics != nil {
		s.metrics.Rejections.Inc()
		s.metrics.ObserveReview(start)
	}
	s.logger.InfoContext(ctx, "submission rejected",
		"submission_id", sub.ID.String(),
		"stage_id", sub.StageID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notifyRejection(ctx, sub, reason)
	return nil
}

// Case returns the person's aggregate view.
func (s *Service) Case(ctx context.Context, personID id.PersonID) (*progress.CaseView, error) {
	return s.projector.Status(ctx, personID)
}

// Statistics returns aggregate submission counts for one stage.
func (s *Service) Statistics(ctx context.Context, stageID id.StageID) (models.StageCounts, error) {
	if _, ok := s.catalog.ByID(stageID); !ok {
		return models.StageCounts{}, dErrors.New(dErrors.CodeNotFound, "unknown stage").
			WithDetail("stage_id", stageID.String())
	}
	counts, err := s.store.StageCounts(ctx, stageID)
	if err != nil {
		return models.StageCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stage statistics")
	}
	return counts, nil
}

// Catalog exposes the stage definitions for read-only listing.
func (s *Service) Catalog() *stage.Catalog {
	return s.catalog
}

func wrapReviewErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "submission not found")
	}
	if dErrors.HasCode(err, dErrors.CodeInvalidTransition) || dErrors.HasCode(err, dErrors.CodeAlreadyFinalized) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update submission")
}

func submissionKind(prior models.Status) string {
	switch prior {
	case models.StatusNotStarted:
		return "new"
	case models.StatusRejected:
		return "resubmission"
	default:
		return "edit"
	}
}
