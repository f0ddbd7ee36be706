package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clearance/internal/workflow/models"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
)

// Schema is the submissions table. The UNIQUE constraint enforces invariant
// "at most one record per (person, stage)" at the storage layer; Execute
// uses SELECT ... FOR UPDATE so validate and mutate happen under the row
// lock.
const Schema = `
CREATE TABLE IF NOT EXISTS submissions (
    id               uuid PRIMARY KEY,
    person_id        uuid NOT NULL,
    stage_id         text NOT NULL,
    status           text NOT NULL,
    documents        jsonb NOT NULL,
    scope            text NOT NULL DEFAULT '',
    reviewer_id      uuid,
    reviewer_comment text NOT NULL DEFAULT '',
    submitted_at     timestamptz NOT NULL,
    reviewed_at      timestamptz,
    UNIQUE (person_id, stage_id)
);
CREATE INDEX IF NOT EXISTS submissions_stage_idx ON submissions (stage_id);
`

const submissionColumns = `id, person_id, stage_id, status, documents, scope, reviewer_id, reviewer_comment, submitted_at, reviewed_at`

// Postgres persists submissions in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the submissions table if missing. Used by local
// bootstrap and integration tests; production deployments run migrations.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Postgres) Create(ctx context.Context, sub *models.Submission) error {
	docs, err := json.Marshal(sub.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	var reviewerID *uuid.UUID
	if sub.ReviewerID != nil {
		rid := uuid.UUID(*sub.ReviewerID)
		reviewerID = &rid
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO submissions (`+submissionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(sub.ID), uuid.UUID(sub.PersonID), sub.StageID.String(), sub.Status.String(),
		docs, sub.Scope, reviewerID, sub.ReviewerComment, sub.SubmittedAt, sub.ReviewedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, uuid.UUID(subID))
	return scanSubmission(row)
}

func (s *Postgres) FindByPersonAndStage(ctx context.Context, personID id.PersonID, stageID id.StageID) (*models.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE person_id = $1 AND stage_id = $2`,
		uuid.UUID(personID), stageID.String())
	return scanSubmission(row)
}

func (s *Postgres) ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE person_id = $1`, uuid.UUID(personID))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	var out []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Execute loads the row FOR UPDATE, runs validate, applies mutate, and
// writes the result back inside one transaction. A concurrent reviewer
// blocks on the row lock and then fails validation against the new status,
// so approve/reject races cannot both succeed.
func (s *Postgres) Execute(ctx context.Context, subID id.SubmissionID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error) {
	return s.execute(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`,
		[]any{uuid.UUID(subID)}, validate, mutate)
}

func (s *Postgres) ExecuteByPersonAndStage(ctx context.Context, personID id.PersonID, stageID id.StageID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error) {
	return s.execute(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE person_id = $1 AND stage_id = $2 FOR UPDATE`,
		[]any{uuid.UUID(personID), stageID.String()}, validate, mutate)
}

func (s *Postgres) execute(ctx context.Context, query string, args []any, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, err := scanSubmission(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := validate(sub); err != nil {
		return nil, err
	}
	mutate(sub)

	docs, err := json.Marshal(sub.Documents)
	if err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}
	var reviewerID *uuid.UUID
	if sub.ReviewerID != nil {
		rid := uuid.UUID(*sub.ReviewerID)
		reviewerID = &rid
	}
	tag, err := tx.Exec(ctx,
		`UPDATE submissions
		 SET status = $2, documents = $3, scope = $4, reviewer_id = $5,
		     reviewer_comment = $6, submitted_at = $7, reviewed_at = $8
		 WHERE id = $1`,
		uuid.UUID(sub.ID), sub.Status.String(), docs, sub.Scope,
		reviewerID, sub.ReviewerComment, sub.SubmittedAt, sub.ReviewedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, sentinel.ErrInvalidState
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sub, nil
}

func (s *Postgres) StageCounts(ctx context.Context, stageID id.StageID) (models.StageCounts, error) {
	var counts models.StageCounts
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'pending'),
		        count(*) FILTER (WHERE status = 'approved'),
		        count(*) FILTER (WHERE status = 'rejected')
		 FROM submissions WHERE stage_id = $1`, stageID.String(),
	).Scan(&counts.Total, &counts.Pending, &counts.Approved, &counts.Rejected)
	if err != nil {
		return models.StageCounts{}, fmt.Errorf("stage counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		subID      uuid.UUID
		personID   uuid.UUID
		stageID    string
		status     string
		docs       []byte
		scope      string
		reviewerID *uuid.UUID
		comment    string
		submitted  time.Time
		reviewed   *time.Time
	)
	err := row.Scan(&subID, &personID, &stageID, &status, &docs, &scope, &reviewerID, &comment, &submitted, &reviewed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	parsedStatus, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("stored status %q: %w", status, err)
	}
	sub := &models.Submission{
		ID:              id.SubmissionID(subID),
		PersonID:        id.PersonID(personID),
		StageID:         id.StageID(stageID),
		Status:          parsedStatus,
		Scope:           scope,
		ReviewerComment: comment,
		SubmittedAt:     submitted,
		ReviewedAt:      reviewed,
	}
	if reviewerID != nil {
		rid := id.ReviewerID(*reviewerID)
		sub.ReviewerID = &rid
	}
	if err := json.Unmarshal(docs, &sub.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	return sub, nil
}
