// Package domain holds typed identifiers shared across modules.
//
// Identifiers are constructed via ParseX at trust boundaries so malformed
// input never reaches services; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "clearance/pkg/domain-errors"
)

// PersonID identifies the person whose case moves through the catalog.
type PersonID uuid.UUID

// SubmissionID identifies one submission record.
type SubmissionID uuid.UUID

// ReviewerID identifies the authority acting on a submission.
type ReviewerID uuid.UUID

func (id PersonID) String() string     { return uuid.UUID(id).String() }
func (id SubmissionID) String() string { return uuid.UUID(id).String() }
func (id ReviewerID) String() string   { return uuid.UUID(id).String() }

func (id PersonID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

// NewSubmissionID mints a fresh submission identifier.
func NewSubmissionID() SubmissionID {
	return SubmissionID(uuid.New())
}

// ParsePersonID constructs a PersonID from external input.
func ParsePersonID(s string) (PersonID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return PersonID{}, dErrors.New(dErrors.CodeValidation, "invalid person id")
	}
	return PersonID(u), nil
}

// ParseSubmissionID constructs a SubmissionID from external input.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return SubmissionID{}, dErrors.New(dErrors.CodeValidation, "invalid submission id")
	}
	return SubmissionID(u), nil
}

// ParseReviewerID constructs a ReviewerID from external input.
func ParseReviewerID(s string) (ReviewerID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return ReviewerID{}, dErrors.New(dErrors.CodeValidation, "invalid reviewer id")
	}
	return ReviewerID(u), nil
}
