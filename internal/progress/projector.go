// Package progress derives the person-facing case view from stored
// submissions. Pure read; the view is computed on demand and never cached
// authoritatively, so it may trail a concurrent transition by one snapshot.
package progress

import (
	"context"
	"math"
	"time"

	"clearance/internal/stage"
	"clearance/internal/workflow/models"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
)

// StageProgress is one stage's effective state within a case. Stages with
// no submission record appear as NotStarted.
type StageProgress struct {
	StageID         id.StageID    `json:"stage_id"`
	DisplayName     string        `json:"display_name"`
	Status          models.Status `json:"status"`
	SubmissionID    string        `json:"submission_id,omitempty"`
	SubmittedAt     *time.Time    `json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	ReviewerComment string        `json:"reviewer_comment,omitempty"`
}

// CaseView aggregates a person's submissions across the whole catalog.
type CaseView struct {
	PersonID          id.PersonID     `json:"person_id"`
	Stages            []StageProgress `json:"stages"`
	OverallPercentage int             `json:"overall_percentage"`
	IsComplete        bool            `json:"is_complete"`
}

// SubmissionLister is the narrow read the projector needs.
type SubmissionLister interface {
	ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Submission, error)
}

// Projector computes case views over the stage catalog.
type Projector struct {
	catalog *stage.Catalog
	store   SubmissionLister
}

func New(catalog *stage.Catalog, store SubmissionLister) *Projector {
	return &Projector{catalog: catalog, store: store}
}

// Status returns the person's case view. A person with no submissions gets
// an all-NotStarted view rather than NotFound: the engine does not own
// person records, so absence of submissions is indistinguishable from a
// fresh case.
func (p *Projector) Status(ctx context.Context, personID id.PersonID) (*CaseView, error) {
	subs, err := p.store.ListByPerson(ctx, personID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submissions")
	}
	return Project(p.catalog, personID, subs), nil
}

// Project is the pure aggregation over one snapshot of submissions.
func Project(catalog *stage.Catalog, personID id.PersonID, subs []*models.Submission) *CaseView {
	byStage := make(map[id.StageID]*models.Submission, len(subs))
	for _, sub := range subs {
		byStage[sub.StageID] = sub
	}

	view := &CaseView{PersonID: personID}
	approved := 0
	for _, st := range catalog.Stages() {
		sp := StageProgress{
			StageID:     st.ID,
			DisplayName: st.DisplayName,
			Status:      models.StatusNotStarted,
		}
		if sub, ok := byStage[st.ID]; ok {
			sp.Status = sub.Status
			sp.SubmissionID = sub.ID.String()
			submittedAt := sub.SubmittedAt
			sp.SubmittedAt = &submittedAt
			sp.ReviewedAt = sub.ReviewedAt
			sp.ReviewerComment = sub.ReviewerComment
			if sub.Status == models.StatusApproved {
				approved++
			}
		}
		view.Stages = append(view.Stages, sp)
	}

	total := catalog.Len()
	view.OverallPercentage = int(math.Round(100 * float64(approved) / float64(total)))
	view.IsComplete = approved == total
	return view
}

// StatusMap reduces a submission snapshot to per-stage statuses for gating.
func StatusMap(subs []*models.Submission) map[id.StageID]models.Status {
	statuses := make(map[id.StageID]models.Status, len(subs))
	for _, sub := range subs {
		statuses[sub.StageID] = sub.Status
	}
	return statuses
}
