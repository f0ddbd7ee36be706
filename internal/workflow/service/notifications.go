package service

import (
	"context"
	"fmt"

	"clearance/internal/notify"
	"clearance/internal/progress"
	"clearance/internal/stage"
	"clearance/internal/workflow/models"
)

// Notification dispatch runs strictly after the state-transition commit.
// The sink is fire-and-forget; errors are logged here and go no further.

func (s *Service) notifyReviewers(ctx context.Context, st stage.Stage, sub *models.Submission, prior models.Status) {
	title := "New submission"
	if prior == models.StatusRejected {
		title = "Resubmission"
	}
	s.send(ctx, notify.Notification{
		Recipient: reviewerAudience(st, sub.Scope),
		Title:     title,
		Message:   fmt.Sprintf("%s: submission from %s awaits review", st.DisplayName, sub.PersonID),
		Severity:  notify.SeverityInfo,
		Metadata: map[string]string{
			"submission_id": sub.ID.String(),
			"stage_id":      sub.StageID.String(),
			"person_id":     sub.PersonID.String(),
		},
	})
}

func (s *Service) notifyApproval(ctx context.Context, sub *models.Submission, view *progress.CaseView) {
	s.send(ctx, notify.Notification{
		Recipient: sub.PersonID.String(),
		Title:     "Stage approved",
		Message:   fmt.Sprintf("Your %s submission was approved", sub.StageID),
		Severity:  notify.SeveritySuccess,
		Metadata: map[string]string{
			"submission_id": sub.ID.String(),
			"stage_id":      sub.StageID.String(),
		},
	})
	// Fires exactly once: only the approval transition that completes the
	// case reaches this branch; later queries recompute the view but never
	// re-enter Approve.
	if view.IsComplete {
		s.send(ctx, notify.Notification{
			Recipient: sub.PersonID.String(),
			Title:     "Clearance complete",
			Message:   "All clearance stages are approved",
			Severity:  notify.SeveritySuccess,
			Metadata: map[string]string{
				"person_id": sub.PersonID.String(),
			},
		})
	}
}

func (s *Service) notifyRejection(ctx context.Context, sub *models.Submission, reason string) {
	s.send(ctx, notify.Notification{
		Recipient: sub.PersonID.String(),
		Title:     "Submission rejected",
		Message:   fmt.Sprintf("Your %s submission was rejected: %s", sub.StageID, reason),
		Severity:  notify.SeverityWarning,
		Metadata: map[string]string{
			"submission_id": sub.ID.String(),
			"stage_id":      sub.StageID.String(),
			"reason":        reason,
		},
	})
}

func (s *Service) send(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "notification delivery failed",
			"recipient", n.Recipient,
			"title", n.Title,
			"error", err,
		)
	}
}

// reviewerAudience addresses the reviewers of a stage; scope-bound stages
// narrow the audience to the person's scope.
func reviewerAudience(st stage.Stage, scope string) string {
	if st.ScopeRequired && scope != "" {
		return fmt.Sprintf("reviewers:%s:%s", st.ID, scope)
	}
	return fmt.Sprintf("reviewers:%s", st.ID)
}
