//go:build integration

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearance/internal/workflow/models"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
	"clearance/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	pg    *containers.PostgresContainer
	store *Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.Pool)
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "submissions"))
}

func (s *PostgresStoreSuite) newSubmission(stageID id.StageID) *models.Submission {
	sub, err := models.NewSubmission(
		id.PersonID(uuid.New()),
		stageID,
		[]models.DocumentRef{{FileName: "receipt.pdf", URL: "https://files.example/receipt.pdf", MediaType: "application/pdf"}},
		"computer-science",
		time.Now().UTC().Truncate(time.Microsecond),
	)
	s.Require().NoError(err)
	return sub
}

func (s *PostgresStoreSuite) TestCreateAndRoundTrip() {
	sub := s.newSubmission("payment-verification")
	s.Require().NoError(s.store.Create(s.ctx, sub))

	found, err := s.store.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(sub.ID, found.ID)
	s.Equal(sub.PersonID, found.PersonID)
	s.Equal(sub.StageID, found.StageID)
	s.Equal(models.StatusPending, found.Status)
	s.Equal(sub.Documents, found.Documents)
	s.Equal("computer-science", found.Scope)
	s.True(sub.SubmittedAt.Equal(found.SubmittedAt))
	s.Nil(found.ReviewerID)
	s.Nil(found.ReviewedAt)
}

func (s *PostgresStoreSuite) TestCreateConflictOnSameKey() {
	sub := s.newSubmission("payment-verification")
	s.Require().NoError(s.store.Create(s.ctx, sub))

	dup, err := models.NewSubmission(sub.PersonID, sub.StageID, sub.Documents, "", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindNotFound() {
	_, err := s.store.FindByID(s.ctx, id.NewSubmissionID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByPersonAndStage(s.ctx, id.PersonID(uuid.New()), "payment-verification")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByPerson() {
	personID := id.PersonID(uuid.New())
	for _, stageID := range []id.StageID{"payment-verification", "library-clearance"} {
		sub, err := models.NewSubmission(personID, stageID,
			[]models.DocumentRef{{FileName: "doc.pdf", URL: "https://files.example/doc.pdf"}},
			"", time.Now().UTC())
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(s.ctx, sub))
	}

	subs, err := s.store.ListByPerson(s.ctx, personID)
	s.Require().NoError(err)
	s.Len(subs, 2)
}

func (s *PostgresStoreSuite) TestExecuteReviewRoundTrip() {
	sub := s.newSubmission("department-clearance")
	s.Require().NoError(s.store.Create(s.ctx, sub))
	reviewer := id.ReviewerID(uuid.New())
	reviewedAt := time.Now().UTC().Truncate(time.Microsecond)

	updated, err := s.store.Execute(s.ctx, sub.ID,
		func(cur *models.Submission) error { return cur.CanReject() },
		func(cur *models.Submission) { cur.ApplyRejection(reviewer, "missing signature", reviewedAt) },
	)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, updated.Status)

	found, err := s.store.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, found.Status)
	s.Require().NotNil(found.ReviewerID)
	s.Equal(reviewer, *found.ReviewerID)
	s.Equal("missing signature", found.ReviewerComment)
	s.Require().NotNil(found.ReviewedAt)
	s.True(reviewedAt.Equal(*found.ReviewedAt))
}

func (s *PostgresStoreSuite) TestExecuteByPersonAndStageResubmission() {
	sub := s.newSubmission("department-clearance")
	s.Require().NoError(s.store.Create(s.ctx, sub))
	reviewer := id.ReviewerID(uuid.New())

	_, err := s.store.Execute(s.ctx, sub.ID,
		func(cur *models.Submission) error { return cur.CanReject() },
		func(cur *models.Submission) { cur.ApplyRejection(reviewer, "wrong form", time.Now().UTC()) },
	)
	s.Require().NoError(err)

	updated, err := s.store.ExecuteByPersonAndStage(s.ctx, sub.PersonID, sub.StageID,
		func(cur *models.Submission) error { return cur.CanResubmit() },
		func(cur *models.Submission) {
			cur.ApplyResubmission([]models.DocumentRef{
				{FileName: "form-v2.pdf", URL: "https://files.example/form-v2.pdf"},
			}, "computer-science", time.Now().UTC())
		},
	)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, updated.Status)

	found, err := s.store.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, found.Status)
	s.Nil(found.ReviewerID)
	s.Empty(found.ReviewerComment)
	s.Nil(found.ReviewedAt)
	s.Require().Len(found.Documents, 1)
	s.Equal("form-v2.pdf", found.Documents[0].FileName)
}

func (s *PostgresStoreSuite) TestExecuteValidateFailureRollsBack() {
	sub := s.newSubmission("payment-verification")
	s.Require().NoError(s.store.Create(s.ctx, sub))
	reviewer := id.ReviewerID(uuid.New())

	_, err := s.store.Execute(s.ctx, sub.ID,
		func(cur *models.Submission) error { return cur.CanApprove() },
		func(cur *models.Submission) { cur.ApplyApproval(reviewer, "", time.Now().UTC()) },
	)
	s.Require().NoError(err)

	_, err = s.store.Execute(s.ctx, sub.ID,
		func(cur *models.Submission) error { return cur.CanReject() },
		func(cur *models.Submission) { cur.ApplyRejection(reviewer, "too late", time.Now().UTC()) },
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, found.Status)
}

func (s *PostgresStoreSuite) TestConcurrentReviewersOnlyOneWins() {
	sub := s.newSubmission("payment-verification")
	s.Require().NoError(s.store.Create(s.ctx, sub))

	const reviewers = 8
	var approved atomic.Int32
	var wg sync.WaitGroup
	wg.Add(reviewers)
	for i := 0; i < reviewers; i++ {
		go func() {
			defer wg.Done()
			reviewer := id.ReviewerID(uuid.New())
			_, err := s.store.Execute(s.ctx, sub.ID,
				func(cur *models.Submission) error { return cur.CanApprove() },
				func(cur *models.Submission) { cur.ApplyApproval(reviewer, "", time.Now().UTC()) },
			)
			if err == nil {
				approved.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), approved.Load())
}

func (s *PostgresStoreSuite) TestStageCounts() {
	stageID := id.StageID("payment-verification")
	reviewer := id.ReviewerID(uuid.New())

	pending := s.newSubmission(stageID)
	s.Require().NoError(s.store.Create(s.ctx, pending))

	approved := s.newSubmission(stageID)
	s.Require().NoError(s.store.Create(s.ctx, approved))
	_, err := s.store.Execute(s.ctx, approved.ID,
		func(cur *models.Submission) error { return cur.CanApprove() },
		func(cur *models.Submission) { cur.ApplyApproval(reviewer, "", time.Now().UTC()) },
	)
	s.Require().NoError(err)

	counts, err := s.store.StageCounts(s.ctx, stageID)
	s.Require().NoError(err)
	s.Equal(models.StageCounts{Total: 2, Pending: 1, Approved: 1}, counts)
}
