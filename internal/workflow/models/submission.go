package models

import (
	"strings"
	"time"

	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
)

// Status is the lifecycle state of a submission.
//
// NotStarted is derived from the absence of a record and is never persisted;
// it exists so projections can present a uniform per-stage status.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusNotStarted: true,
	StatusPending:    true,
	StatusApproved:   true,
	StatusRejected:   true,
}

// ParseStatus constructs a Status from stored or external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	return st, nil
}

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible.
// Approved is the only terminal state.
func (s Status) Terminal() bool {
	return s == StatusApproved
}

// DocumentRef points at an uploaded document. Storage is handled upstream;
// the engine treats the reference as opaque.
type DocumentRef struct {
	FileName  string `json:"file_name"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// Validate checks the reference fields required to address the document.
func (d DocumentRef) Validate() error {
	if strings.TrimSpace(d.FileName) == "" {
		return dErrors.New(dErrors.CodeValidation, "document file_name is required")
	}
	if strings.TrimSpace(d.URL) == "" {
		return dErrors.New(dErrors.CodeValidation, "document url is required")
	}
	return nil
}

// ValidateDocuments checks a submission's document list.
func ValidateDocuments(docs []DocumentRef) error {
	if len(docs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one document is required")
	}
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Submission is one person's current attempt at one stage.
//
// Invariants:
//   - At most one record exists per (person, stage); the store enforces this.
//   - Pending → Approved and Pending → Rejected happen at most once per
//     round; re-approval or re-rejection requires a resubmission first.
//   - Resubmission (Rejected → Pending) clears reviewer fields.
//   - Approved is terminal; no further submission to the stage is admissible.
//
// Mutated exclusively by the workflow service through the store's Execute
// callback, which holds the record lock across validate and mutate.
type Submission struct {
	ID        id.SubmissionID `json:"id"`
	PersonID  id.PersonID     `json:"person_id"`
	StageID   id.StageID      `json:"stage_id"`
	Status    Status          `json:"status"`
	Documents []DocumentRef   `json:"documents"`

	// Scope is the person's organizational scope (e.g. department) for
	// stages whose reviewer is scope-bound. Empty otherwise.
	Scope string `json:"scope,omitempty"`

	ReviewerID      *id.ReviewerID `json:"reviewer_id,omitempty"`
	ReviewerComment string         `json:"reviewer_comment,omitempty"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
}

// NewSubmission constructs a pending first-round submission.
func NewSubmission(personID id.PersonID, stageID id.StageID, docs []DocumentRef, scope string, now time.Time) (*Submission, error) {
	if personID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "person id is required")
	}
	if err := ValidateDocuments(docs); err != nil {
		return nil, err
	}
	return &Submission{
		ID:          id.NewSubmissionID(),
		PersonID:    personID,
		StageID:     stageID,
		Status:      StatusPending,
		Documents:   append([]DocumentRef(nil), docs...),
		Scope:       scope,
		SubmittedAt: now,
	}, nil
}

// CanApprove checks that an approval transition is legal.
// Use with ApplyApproval inside the store's Execute callback.
func (s *Submission) CanApprove() error {
	return s.canReview()
}

// ApplyApproval finalizes the submission. Call CanApprove first.
func (s *Submission) ApplyApproval(reviewerID id.ReviewerID, comment string, now time.Time) {
	s.Status = StatusApproved
	s.ReviewerID = &reviewerID
	s.ReviewerComment = comment
	s.ReviewedAt = &now
}

// CanReject checks that a rejection transition is legal.
// Use with ApplyRejection inside the store's Execute callback.
func (s *Submission) CanReject() error {
	return s.canReview()
}

// ApplyRejection records the rejection and its reason. Call CanReject first.
func (s *Submission) ApplyRejection(reviewerID id.ReviewerID, reason string, now time.Time) {
	s.Status = StatusRejected
	s.ReviewerID = &reviewerID
	s.ReviewerComment = reason
	s.ReviewedAt = &now
}

func (s *Submission) canReview() error {
	switch s.Status {
	case StatusPending:
		return nil
	case StatusApproved:
		return dErrors.New(dErrors.CodeInvalidTransition, "submission is already approved")
	case StatusRejected:
		return dErrors.New(dErrors.CodeInvalidTransition, "submission is already rejected; awaiting resubmission")
	default:
		return dErrors.New(dErrors.CodeInvalidTransition, "submission is not pending review")
	}
}

// CanResubmit checks that a new Submit call may replace this record's open
// round. Pending permits an idempotent edit of the document list; Rejected
// permits a fresh round. Approved is immutable.
func (s *Submission) CanResubmit() error {
	switch s.Status {
	case StatusPending, StatusRejected:
		return nil
	case StatusApproved:
		return dErrors.New(dErrors.CodeAlreadyFinalized, "stage is already approved")
	default:
		return dErrors.New(dErrors.CodeInvalidTransition, "submission cannot be resubmitted")
	}
}

// ApplyResubmission starts a new round: status returns to Pending and
// reviewer fields from the previous round are cleared. Call CanResubmit
// first.
func (s *Submission) ApplyResubmission(docs []DocumentRef, scope string, now time.Time) {
	s.Status = StatusPending
	s.Documents = append([]DocumentRef(nil), docs...)
	s.Scope = scope
	s.ReviewerID = nil
	s.ReviewerComment = ""
	s.ReviewedAt = nil
	s.SubmittedAt = now
}

// Clone returns a deep copy so store snapshots never alias caller memory.
func (s *Submission) Clone() *Submission {
	c := *s
	c.Documents = append([]DocumentRef(nil), s.Documents...)
	if s.ReviewerID != nil {
		rid := *s.ReviewerID
		c.ReviewerID = &rid
	}
	if s.ReviewedAt != nil {
		at := *s.ReviewedAt
		c.ReviewedAt = &at
	}
	return &c
}

// StageCounts aggregates submission statuses for one stage, feeding
// reviewer dashboards.
type StageCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
