package stage

import (
	"clearance/internal/workflow/models"
	id "clearance/pkg/domain"
)

// CanSubmit reports whether a new submission to the stage is currently
// admissible: every prerequisite stage must be Approved in the person's
// current per-stage statuses. A stage with no prerequisites is always
// admissible.
//
// Absent entries in statuses count as NotStarted. Pure function; the
// caller supplies the snapshot.
func CanSubmit(statuses map[id.StageID]models.Status, s Stage) bool {
	return len(UnmetPrerequisites(statuses, s)) == 0
}

// UnmetPrerequisites returns the prerequisite stages that are not yet
// Approved, in the stage's declared order, so gating errors can tell the
// caller exactly what is missing.
func UnmetPrerequisites(statuses map[id.StageID]models.Status, s Stage) []id.StageID {
	var unmet []id.StageID
	for _, p := range s.Prerequisites {
		if statuses[p] != models.StatusApproved {
			unmet = append(unmet, p)
		}
	}
	return unmet
}
