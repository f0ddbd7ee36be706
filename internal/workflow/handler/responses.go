package handler

import (
	"clearance/internal/stage"
	"clearance/internal/workflow/models"
)

type submissionResponse struct {
	ID          string `json:"id"`
	PersonID    string `json:"person_id"`
	StageID     string `json:"stage_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

func toSubmissionResponse(sub *models.Submission) submissionResponse {
	return submissionResponse{
		ID:          sub.ID.String(),
		PersonID:    sub.PersonID.String(),
		StageID:     sub.StageID.String(),
		Status:      sub.Status.String(),
		SubmittedAt: sub.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type approveResponse struct {
	CaseComplete bool `json:"case_complete"`
}

type stageResponse struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	Order         int      `json:"order"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	ScopeRequired bool     `json:"scope_required,omitempty"`
}

func toStageResponses(stages []stage.Stage) []stageResponse {
	out := make([]stageResponse, 0, len(stages))
	for _, st := range stages {
		resp := stageResponse{
			ID:            st.ID.String(),
			DisplayName:   st.DisplayName,
			Order:         st.Order,
			ScopeRequired: st.ScopeRequired,
		}
		for _, p := range st.Prerequisites {
			resp.Prerequisites = append(resp.Prerequisites, p.String())
		}
		out = append(out, resp)
	}
	return out
}
