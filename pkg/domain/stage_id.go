package domain

import (
	dErrors "clearance/pkg/domain-errors"
)

// StageID is a stable slug identifying one stage in the catalog
// (e.g. "dept-clearance"). Stage ids are configuration, not data, so they
// are slugs rather than UUIDs: they appear in URLs, prerequisite sets, and
// stage definition files.
//
// Usage: construct via ParseStageID at trust boundaries; direct casting
// bypasses validation.
type StageID string

const maxStageIDLen = 64

// ParseStageID constructs a StageID from external input.
//
// Errors: returns CodeValidation when the value is empty, too long, or
// contains anything outside lowercase letters, digits, and hyphens.
func ParseStageID(s string) (StageID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "stage id cannot be empty")
	}
	if len(s) > maxStageIDLen {
		return "", dErrors.New(dErrors.CodeValidation, "stage id too long")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' {
			continue
		}
		return "", dErrors.New(dErrors.CodeValidation, "stage id must be a lowercase slug")
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return "", dErrors.New(dErrors.CodeValidation, "stage id must be a lowercase slug")
	}
	return StageID(s), nil
}

func (id StageID) String() string {
	return string(id)
}
