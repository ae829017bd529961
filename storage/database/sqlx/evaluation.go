package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core/evaluation"
)

type evaluationRow struct {
	ID          string         `db:"id"`
	EvaluatorID string         `db:"evaluator_id"`
	ProjectID   string         `db:"project_id"`
	SchoolID    string         `db:"school_id"`
	FairID      string         `db:"fair_id"`
	Items       types.JSONText `db:"items"`
	HasAnyScore bool           `db:"has_any_score"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toEvaluationRow(ev evaluation.Evaluation) (evaluationRow, error) {
	items := ev.Items
	if items == nil {
		items = []evaluation.ScoreItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return evaluationRow{}, errors.Wrap(err, "encoding score items")
	}
	return evaluationRow{
		ID:          ev.ID,
		EvaluatorID: ev.EvaluatorID,
		ProjectID:   ev.ProjectID,
		SchoolID:    ev.SchoolID,
		FairID:      ev.FairID,
		Items:       types.JSONText(data),
		HasAnyScore: ev.HasAnyScore,
		CreatedAt:   ev.CreatedAt.UTC(),
		UpdatedAt:   ev.UpdatedAt.UTC(),
	}, nil
}

func (r evaluationRow) evaluation() (evaluation.Evaluation, error) {
	items := make([]evaluation.ScoreItem, 0)
	if err := r.Items.Unmarshal(&items); err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "decoding score items")
	}
	return evaluation.Evaluation{
		ID:          r.ID,
		EvaluatorID: r.EvaluatorID,
		ProjectID:   r.ProjectID,
		SchoolID:    r.SchoolID,
		FairID:      r.FairID,
		Items:       items,
		HasAnyScore: r.HasAnyScore,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}, nil
}

type evaluationRepository struct {
	db *sqlx.DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *sqlx.DB) *evaluationRepository {
	return &evaluationRepository{db: db}
}

func (repo *evaluationRepository) GetEvaluation(ctx context.Context, evaluatorID, projectID string) (evaluation.Evaluation, error) {
	var row evaluationRow
	const q = `SELECT * FROM evaluations WHERE evaluator_id = $1 AND project_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, evaluatorID, projectID); err != nil {
		return evaluation.Evaluation{}, trapNoRowsErr(err, evaluation.ErrNotFound, "getting evaluation")
	}
	return row.evaluation()
}

// SaveEvaluation upserts on the (evaluator_id, project_id) unique key; the stored ID and creation date win.
func (repo *evaluationRepository) SaveEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	row, err := toEvaluationRow(ev)
	if err != nil {
		return evaluation.Evaluation{}, err
	}
	const q = `INSERT INTO evaluations (id, evaluator_id, project_id, school_id, fair_id, items, has_any_score, created_at, updated_at)
		VALUES (:id, :evaluator_id, :project_id, :school_id, :fair_id, :items, :has_any_score, :created_at, :updated_at)
		ON CONFLICT (evaluator_id, project_id) DO UPDATE SET
			items = EXCLUDED.items,
			has_any_score = EXCLUDED.has_any_score,
			updated_at = EXCLUDED.updated_at
		RETURNING *`
	stmt, err := repo.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "preparing evaluation upsert")
	}
	defer func() { _ = stmt.Close() }()

	var saved evaluationRow
	if err = stmt.GetContext(ctx, &saved, row); err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "upserting evaluation")
	}
	return saved.evaluation()
}

func (repo *evaluationRepository) QueryEvaluations(ctx context.Context, filter evaluation.QueryFilter) ([]evaluation.Evaluation, error) {
	const q = `SELECT * FROM evaluations
		WHERE ($1 = '' OR school_id = $1) AND ($2 = '' OR fair_id = $2)
		AND ($3 = '' OR evaluator_id = $3) AND ($4 = '' OR project_id = $4)
		ORDER BY created_at`
	var rows []evaluationRow
	err := repo.db.SelectContext(ctx, &rows, q, filter.SchoolID, filter.FairID, filter.EvaluatorID, filter.ProjectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	evals := make([]evaluation.Evaluation, 0, len(rows))
	for _, r := range rows {
		ev, err := r.evaluation()
		if err != nil {
			return nil, err
		}
		evals = append(evals, ev)
	}
	return evals, nil
}
