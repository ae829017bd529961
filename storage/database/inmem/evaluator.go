package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/evaluator"
)

type evaluatorRepository struct {
	db *evaluatorTable
}

var _ evaluator.Repository = (*evaluatorRepository)(nil) // interface compliance check

func NewEvaluatorRepository(db *DB) *evaluatorRepository {
	return &evaluatorRepository{db: db.evaluator}
}

func copyEvaluator(e evaluator.Evaluator) evaluator.Evaluator {
	e.ProjectIDs = cloneStrings(e.ProjectIDs)
	return e
}

func (repo *evaluatorRepository) pinTaken(e evaluator.Evaluator) bool {
	for _, other := range repo.db.table {
		if other.ID != e.ID && other.PINHash == e.PINHash {
			return true
		}
	}
	return false
}

func (repo *evaluatorRepository) CreateEvaluator(_ context.Context, e evaluator.Evaluator) (evaluator.Evaluator, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.pinTaken(e) {
		return evaluator.Evaluator{}, evaluator.ErrPINExists
	}
	e = copyEvaluator(e)
	e.ID = uuid.New().String()
	repo.db.table[e.ID] = &e
	return copyEvaluator(e), nil
}

func (repo *evaluatorRepository) GetEvaluator(_ context.Context, filter evaluator.GetFilter) (evaluator.Evaluator, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if e, ok := repo.db.table[filter.ID]; ok {
			return copyEvaluator(*e), nil
		}
	} else if filter.PINHash != "" {
		for _, e := range repo.db.table {
			if e.PINHash == filter.PINHash {
				return copyEvaluator(*e), nil
			}
		}
	}
	return evaluator.Evaluator{}, evaluator.ErrNotFound
}

func (repo *evaluatorRepository) QueryEvaluators(_ context.Context, filter evaluator.QueryFilter) ([]evaluator.Evaluator, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	evaluators := make([]evaluator.Evaluator, 0)
	for _, e := range repo.db.table {
		switch {
		case filter.SchoolID != "" && e.SchoolID != filter.SchoolID,
			filter.FairID != "" && e.FairID != filter.FairID,
			filter.ProjectID != "" && !e.HasProject(filter.ProjectID):
			continue
		}
		evaluators = append(evaluators, copyEvaluator(*e))
	}
	sort.Slice(evaluators, func(i, j int) bool {
		return strings.ToLower(evaluators[i].Name) < strings.ToLower(evaluators[j].Name)
	})
	return evaluators, nil
}

func (repo *evaluatorRepository) UpdateEvaluator(_ context.Context, id string, ch evaluator.Changes) (evaluator.Evaluator, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[id]
	if !ok {
		return evaluator.Evaluator{}, evaluator.ErrNotFound
	}
	if stored.FinishedAll {
		return evaluator.Evaluator{}, evaluator.ErrAlreadyFinalized
	}
	if ch.PINHash != nil {
		if repo.pinTaken(evaluator.Evaluator{ID: id, PINHash: *ch.PINHash}) {
			return evaluator.Evaluator{}, evaluator.ErrPINExists
		}
		stored.PINHash = *ch.PINHash
	}
	if ch.ProjectIDs != nil {
		stored.ProjectIDs = cloneStrings(ch.ProjectIDs)
	}
	if ch.Active != nil {
		stored.Active = *ch.Active
	}
	if ch.LastLogin != nil {
		at := ch.LastLogin.UTC()
		stored.LastLogin = &at
	}
	if !ch.UpdatedAt.IsZero() {
		stored.UpdatedAt = ch.UpdatedAt.UTC()
	}
	return copyEvaluator(*stored), nil
}

func (repo *evaluatorRepository) RemoveEvaluatorProject(_ context.Context, id, projectID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if e, ok := repo.db.table[id]; ok && !e.FinishedAll && e.HasProject(projectID) {
		e.ProjectIDs = core.RemoveString(e.ProjectIDs, projectID)
		e.UpdatedAt = at.UTC()
	}
	return nil
}

func (repo *evaluatorRepository) FinalizeEvaluator(_ context.Context, id string, at time.Time) (evaluator.Evaluator, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.table[id]
	if !ok {
		return evaluator.Evaluator{}, evaluator.ErrNotFound
	}
	if e.FinishedAll {
		return evaluator.Evaluator{}, evaluator.ErrAlreadyFinalized
	}
	e.FinishedAll = true
	e.Active = false
	e.FinishedAt = &at
	e.UpdatedAt = at
	return copyEvaluator(*e), nil
}

func (repo *evaluatorRepository) DeleteEvaluator(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, id)
	return nil
}
