package progress

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearance/internal/stage"
	"clearance/internal/workflow/models"
	"clearance/internal/workflow/store"
	id "clearance/pkg/domain"
)

func threeStageCatalog(t *testing.T) *stage.Catalog {
	t.Helper()
	catalog, err := stage.Chain(
		stage.Stage{ID: "payment", DisplayName: "Payment", Order: 1},
		stage.Stage{ID: "library", DisplayName: "Library", Order: 2},
		stage.Stage{ID: "final", DisplayName: "Final", Order: 3},
	)
	require.NoError(t, err)
	return catalog
}

func submissionWithStatus(t *testing.T, personID id.PersonID, stageID id.StageID, status models.Status) *models.Submission {
	t.Helper()
	sub, err := models.NewSubmission(personID, stageID,
		[]models.DocumentRef{{FileName: "doc.pdf", URL: "https://files.example/doc.pdf"}},
		"", time.Now().UTC())
	require.NoError(t, err)
	reviewer := id.ReviewerID(uuid.New())
	switch status {
	case models.StatusApproved:
		sub.ApplyApproval(reviewer, "ok", time.Now().UTC())
	case models.StatusRejected:
		sub.ApplyRejection(reviewer, "missing page", time.Now().UTC())
	}
	return sub
}

func TestProject(t *testing.T) {
	catalog := threeStageCatalog(t)
	personID := id.PersonID(uuid.New())

	t.Run("empty snapshot is all not started", func(t *testing.T) {
		view := Project(catalog, personID, nil)
		require.Len(t, view.Stages, 3)
		for _, sp := range view.Stages {
			assert.Equal(t, models.StatusNotStarted, sp.Status)
			assert.Empty(t, sp.SubmissionID)
		}
		assert.Equal(t, 0, view.OverallPercentage)
		assert.False(t, view.IsComplete)
	})

	t.Run("percentage rounds to nearest integer", func(t *testing.T) {
		one := Project(catalog, personID, []*models.Submission{
			submissionWithStatus(t, personID, "payment", models.StatusApproved),
		})
		assert.Equal(t, 33, one.OverallPercentage)
		assert.False(t, one.IsComplete)

		two := Project(catalog, personID, []*models.Submission{
			submissionWithStatus(t, personID, "payment", models.StatusApproved),
			submissionWithStatus(t, personID, "library", models.StatusApproved),
		})
		assert.Equal(t, 67, two.OverallPercentage)
		assert.False(t, two.IsComplete)
	})

	t.Run("only approved stages count toward progress", func(t *testing.T) {
		view := Project(catalog, personID, []*models.Submission{
			submissionWithStatus(t, personID, "payment", models.StatusPending),
			submissionWithStatus(t, personID, "library", models.StatusRejected),
		})
		assert.Equal(t, 0, view.OverallPercentage)
		assert.Equal(t, models.StatusPending, view.Stages[0].Status)
		assert.Equal(t, models.StatusRejected, view.Stages[1].Status)
		assert.Equal(t, "missing page", view.Stages[1].ReviewerComment)
	})

	t.Run("complete when every stage is approved", func(t *testing.T) {
		view := Project(catalog, personID, []*models.Submission{
			submissionWithStatus(t, personID, "payment", models.StatusApproved),
			submissionWithStatus(t, personID, "library", models.StatusApproved),
			submissionWithStatus(t, personID, "final", models.StatusApproved),
		})
		assert.Equal(t, 100, view.OverallPercentage)
		assert.True(t, view.IsComplete)
	})

	t.Run("stages follow catalog order", func(t *testing.T) {
		view := Project(catalog, personID, nil)
		assert.Equal(t, id.StageID("payment"), view.Stages[0].StageID)
		assert.Equal(t, id.StageID("library"), view.Stages[1].StageID)
		assert.Equal(t, id.StageID("final"), view.Stages[2].StageID)
	})
}

func TestProjectorStatus(t *testing.T) {
	catalog := threeStageCatalog(t)
	ctx := context.Background()
	st := store.NewInMemory()
	projector := New(catalog, st)
	personID := id.PersonID(uuid.New())

	t.Run("unknown person gets a fresh case view", func(t *testing.T) {
		view, err := projector.Status(ctx, personID)
		require.NoError(t, err)
		assert.Equal(t, personID, view.PersonID)
		assert.Equal(t, 0, view.OverallPercentage)
		assert.Len(t, view.Stages, 3)
	})

	t.Run("reflects stored submissions", func(t *testing.T) {
		sub := submissionWithStatus(t, personID, "payment", models.StatusApproved)
		require.NoError(t, st.Create(ctx, sub))

		view, err := projector.Status(ctx, personID)
		require.NoError(t, err)
		assert.Equal(t, 33, view.OverallPercentage)
		assert.Equal(t, models.StatusApproved, view.Stages[0].Status)
		assert.Equal(t, sub.ID.String(), view.Stages[0].SubmissionID)
	})
}

func TestStatusMap(t *testing.T) {
	personID := id.PersonID(uuid.New())
	statuses := StatusMap([]*models.Submission{
		submissionWithStatus(t, personID, "payment", models.StatusApproved),
		submissionWithStatus(t, personID, "library", models.StatusPending),
	})
	assert.Equal(t, models.StatusApproved, statuses["payment"])
	assert.Equal(t, models.StatusPending, statuses["library"])
	_, ok := statuses["final"]
	assert.False(t, ok)
}
