package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clearance/internal/platform/metrics"
	"clearance/internal/platform/middleware"
	"clearance/internal/progress"
	"clearance/internal/stage"
	"clearance/internal/transport/http/shared"
	"clearance/internal/workflow/models"
	"clearance/internal/workflow/service"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
)

// Service defines the engine operations the handler consumes.
type Service interface {
	Submit(ctx context.Context, in service.SubmitInput) (*models.Submission, error)
	Approve(ctx context.Context, subID id.SubmissionID, reviewerID id.ReviewerID, comment string) (*service.ApprovalResult, error)
	Reject(ctx context.Context, subID id.SubmissionID, reviewerID id.ReviewerID, reason string) error
	Case(ctx context.Context, personID id.PersonID) (*progress.CaseView, error)
	Statistics(ctx context.Context, stageID id.StageID) (models.StageCounts, error)
	Catalog() *stage.Catalog
}

// Handler is the thin HTTP layer over the workflow engine. It parses and
// validates payloads; business rules stay in the service.
type Handler struct {
	logger       *slog.Logger
	workflow     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a workflow Handler. jwtValidator may be nil, which disables
// bearer-token enforcement (development mode).
func New(workflow Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		workflow:     workflow,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the workflow routes with the standard middleware chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))
	if h.jwtValidator != nil {
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	}

	router.Get("/stages", h.handleListStages)
	router.Post("/stages/{stageID}/submissions", h.handleSubmit)
	router.Get("/stages/{stageID}/statistics", h.handleStatistics)
	router.Post("/submissions/{submissionID}/approve", h.handleApprove)
	router.Post("/submissions/{submissionID}/reject", h.handleReject)
	router.Get("/people/{personID}/case", h.handleCase)

	r.Mount("/", router)
}

func (h *Handler) handleListStages(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, toStageResponses(h.workflow.Catalog().Stages()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stageID, err := id.ParseStageID(chi.URLParam(r, "stageID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	in, err := req.toInput(stageID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	sub, err := h.workflow.Submit(ctx, in)
	if err != nil {
		h.logFailure(ctx, "submit failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toSubmissionResponse(sub))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	reviewerID, err := id.ParseReviewerID(req.ReviewerID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.workflow.Approve(ctx, subID, reviewerID, req.Comment)
	if err != nil {
		h.logFailure(ctx, "approve failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, approveResponse{CaseComplete: result.CaseComplete})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	reviewerID, err := id.ParseReviewerID(req.ReviewerID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.workflow.Reject(ctx, subID, reviewerID, req.Reason); err != nil {
		h.logFailure(ctx, "reject failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	view, err := h.workflow.Case(ctx, personID)
	if err != nil {
		h.logFailure(ctx, "case lookup failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stageID, err := id.ParseStageID(chi.URLParam(r, "stageID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	counts, err := h.workflow.Statistics(ctx, stageID)
	if err != nil {
		h.logFailure(ctx, "statistics lookup failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, counts)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg,
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
}
