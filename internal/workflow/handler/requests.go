package handler

import (
	"clearance/internal/workflow/models"
	"clearance/internal/workflow/service"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
)

// Request payloads are parsed into validated engine inputs here, at the
// boundary; the engine never sees ad-hoc maybe-present shapes.

type documentPayload struct {
	FileName  string `json:"file_name"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

type submitRequest struct {
	PersonID  string            `json:"person_id"`
	Documents []documentPayload `json:"documents"`
	Scope     string            `json:"scope"`
}

func (r submitRequest) toInput(stageID id.StageID) (service.SubmitInput, error) {
	personID, err := id.ParsePersonID(r.PersonID)
	if err != nil {
		return service.SubmitInput{}, err
	}
	if len(r.Documents) == 0 {
		return service.SubmitInput{}, dErrors.New(dErrors.CodeValidation, "at least one document is required")
	}
	docs := make([]models.DocumentRef, 0, len(r.Documents))
	for _, d := range r.Documents {
		ref := models.DocumentRef{FileName: d.FileName, URL: d.URL, MediaType: d.MediaType}
		if err := ref.Validate(); err != nil {
			return service.SubmitInput{}, err
		}
		docs = append(docs, ref)
	}
	return service.SubmitInput{
		PersonID:  personID,
		StageID:   stageID,
		Documents: docs,
		Scope:     r.Scope,
	}, nil
}

type approveRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Comment    string `json:"comment"`
}

type rejectRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason"`
}
