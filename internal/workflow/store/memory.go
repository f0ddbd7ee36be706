// Package store persists submission records keyed by (person, stage).
//
// Both implementations provide the same contract the workflow service
// depends on: a unique record per (person, stage) and an Execute method
// performing an atomic validate-then-mutate while holding the record lock
// (mutex here, row lock in postgres). Contention is naturally partitioned
// per record; there is no global lock.
package store

import (
	"context"
	"sync"

	"clearance/internal/workflow/models"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
)

type recordKey struct {
	person id.PersonID
	stage  id.StageID
}

// InMemory keeps submissions in process memory. Default for development
// and unit tests.
type InMemory struct {
	mu    sync.RWMutex
	byKey map[recordKey]*models.Submission
	byID  map[id.SubmissionID]recordKey
}

func NewInMemory() *InMemory {
	return &InMemory{
		byKey: make(map[recordKey]*models.Submission),
		byID:  make(map[id.SubmissionID]recordKey),
	}
}

// Create inserts a first-round submission. Returns sentinel.ErrConflict if
// a record for (person, stage) already exists.
func (s *InMemory) Create(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{person: sub.PersonID, stage: sub.StageID}
	if _, exists := s.byKey[key]; exists {
		return sentinel.ErrConflict
	}
	s.byKey[key] = sub.Clone()
	s.byID[sub.ID] = key
	return nil
}

// FindByID returns a snapshot of the submission.
func (s *InMemory) FindByID(_ context.Context, subID id.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byKey[key].Clone(), nil
}

// FindByPersonAndStage returns a snapshot of the record for (person, stage).
func (s *InMemory) FindByPersonAndStage(_ context.Context, personID id.PersonID, stageID id.StageID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.byKey[recordKey{person: personID, stage: stageID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return sub.Clone(), nil
}

// ListByPerson returns snapshots of all of a person's submissions.
func (s *InMemory) ListByPerson(_ context.Context, personID id.PersonID) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Submission
	for key, sub := range s.byKey {
		if key.person == personID {
			out = append(out, sub.Clone())
		}
	}
	return out, nil
}

// Execute atomically applies validate-then-mutate to the submission with
// the given id. The lock is held across both callbacks so concurrent
// reviews of the same submission serialize; the loser of an approve/reject
// race observes the new status in validate and fails there.
func (s *InMemory) Execute(_ context.Context, subID id.SubmissionID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.executeLocked(key, validate, mutate)
}

// ExecuteByPersonAndStage is Execute keyed by (person, stage), used for
// resubmissions and pending edits.
func (s *InMemory) ExecuteByPersonAndStage(_ context.Context, personID id.PersonID, stageID id.StageID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{person: personID, stage: stageID}
	if _, ok := s.byKey[key]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.executeLocked(key, validate, mutate)
}

func (s *InMemory) executeLocked(key recordKey, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error) {
	sub := s.byKey[key]
	if err := validate(sub); err != nil {
		return nil, err
	}
	mutate(sub)
	return sub.Clone(), nil
}

// StageCounts aggregates submission statuses for one stage.
func (s *InMemory) StageCounts(_ context.Context, stageID id.StageID) (models.StageCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts models.StageCounts
	for key, sub := range s.byKey {
		if key.stage != stageID {
			continue
		}
		counts.Total++
		switch sub.Status {
		case models.StatusPending:
			counts.Pending++
		case models.StatusApproved:
			counts.Approved++
		case models.StatusRejected:
			counts.Rejected++
		}
	}
	return counts, nil
}
