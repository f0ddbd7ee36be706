// Package shared centralizes JSON response envelopes and domain-error
// translation so every handler returns the same shapes.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "clearance/pkg/domain-errors"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the HTTP envelope. Uncoded
// errors map to 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: string(dErrors.CodeInternal)})
		return
	}
	resp := ErrorResponse{
		Error:   string(de.Code),
		Message: de.Message,
		Details: de.Details,
	}
	if de.Code == dErrors.CodeInternal {
		// Internal details stay in the logs.
		resp.Message = ""
		resp.Details = nil
	}
	WriteJSON(w, ToHTTPStatus(de.Code), resp)
}

// ToHTTPStatus maps domain error codes to HTTP statuses.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeGatingViolation, dErrors.CodeAlreadyFinalized,
		dErrors.CodeInvalidTransition, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
