package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/feira/core/evaluation"
)

type evaluationRepository struct {
	db *evaluationTable
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *DB) *evaluationRepository {
	return &evaluationRepository{db: db.evaluation}
}

func copyEvaluation(ev evaluation.Evaluation) evaluation.Evaluation {
	items := make([]evaluation.ScoreItem, 0, len(ev.Items))
	for _, item := range ev.Items {
		if item.Score != nil {
			score := *item.Score
			item.Score = &score
		}
		items = append(items, item)
	}
	ev.Items = items
	return ev
}

// find must be called with the lock held.
func (repo *evaluationRepository) find(evaluatorID, projectID string) *evaluation.Evaluation {
	for _, ev := range repo.db.table {
		if ev.EvaluatorID == evaluatorID && ev.ProjectID == projectID {
			return ev
		}
	}
	return nil
}

func (repo *evaluationRepository) GetEvaluation(_ context.Context, evaluatorID, projectID string) (evaluation.Evaluation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ev := repo.find(evaluatorID, projectID); ev != nil {
		return copyEvaluation(*ev), nil
	}
	return evaluation.Evaluation{}, evaluation.ErrNotFound
}

func (repo *evaluationRepository) SaveEvaluation(_ context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ev = copyEvaluation(ev)
	if stored := repo.find(ev.EvaluatorID, ev.ProjectID); stored != nil {
		ev.ID = stored.ID
		ev.CreatedAt = stored.CreatedAt
	} else {
		ev.ID = uuid.New().String()
	}
	repo.db.table[ev.ID] = &ev
	return copyEvaluation(ev), nil
}

func (repo *evaluationRepository) QueryEvaluations(_ context.Context, filter evaluation.QueryFilter) ([]evaluation.Evaluation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	evals := make([]evaluation.Evaluation, 0)
	for _, ev := range repo.db.table {
		switch {
		case filter.SchoolID != "" && ev.SchoolID != filter.SchoolID,
			filter.FairID != "" && ev.FairID != filter.FairID,
			filter.EvaluatorID != "" && ev.EvaluatorID != filter.EvaluatorID,
			filter.ProjectID != "" && ev.ProjectID != filter.ProjectID:
			continue
		}
		evals = append(evals, copyEvaluation(*ev))
	}
	sort.Slice(evals, func(i, j int) bool { return evals[i].CreatedAt.Before(evals[j].CreatedAt) })
	return evals, nil
}
