package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/feira/core/evaluator"
)

type evaluatorRow struct {
	ID          string         `db:"id"`
	SchoolID    string         `db:"school_id"`
	FairID      string         `db:"fair_id"`
	Name        string         `db:"name"`
	Email       string         `db:"email"`
	PINHash     string         `db:"pin_hash"`
	ProjectIDs  pq.StringArray `db:"project_ids"`
	Active      bool           `db:"active"`
	FinishedAll bool           `db:"finished_all"`
	FinishedAt  null.Time      `db:"finished_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	LastLogin   null.Time      `db:"last_login"`
}

func toEvaluatorRow(e evaluator.Evaluator) evaluatorRow {
	return evaluatorRow{
		ID:          e.ID,
		SchoolID:    e.SchoolID,
		FairID:      e.FairID,
		Name:        e.Name,
		Email:       e.Email,
		PINHash:     e.PINHash,
		ProjectIDs:  stringArray(e.ProjectIDs),
		Active:      e.Active,
		FinishedAll: e.FinishedAll,
		FinishedAt:  nullTimePtr(e.FinishedAt),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
		LastLogin:   nullTimePtr(e.LastLogin),
	}
}

func (r evaluatorRow) evaluator() evaluator.Evaluator {
	return evaluator.Evaluator{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		FairID:      r.FairID,
		Name:        r.Name,
		Email:       r.Email,
		PINHash:     r.PINHash,
		ProjectIDs:  fromArray(r.ProjectIDs),
		Active:      r.Active,
		FinishedAll: r.FinishedAll,
		FinishedAt:  r.FinishedAt.Ptr(),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		LastLogin:   r.LastLogin.Ptr(),
	}
}

type evaluatorRepository struct {
	db *sqlx.DB
}

var _ evaluator.Repository = (*evaluatorRepository)(nil) // interface compliance check

func NewEvaluatorRepository(db *sqlx.DB) *evaluatorRepository {
	return &evaluatorRepository{db: db}
}

func (repo *evaluatorRepository) CreateEvaluator(ctx context.Context, e evaluator.Evaluator) (evaluator.Evaluator, error) {
	e.ID = uuid.New().String()
	e.FinishedAll = false
	e.FinishedAt = nil
	row := toEvaluatorRow(e)
	const q = `INSERT INTO evaluators (id, school_id, fair_id, name, email, pin_hash, project_ids, active,
		finished_all, finished_at, created_at, updated_at, last_login)
		VALUES (:id, :school_id, :fair_id, :name, :email, :pin_hash, :project_ids, :active,
		:finished_all, :finished_at, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if violatesUnique(err, "evaluators_pin_hash_key") {
			return evaluator.Evaluator{}, evaluator.ErrPINExists
		}
		return evaluator.Evaluator{}, errors.Wrap(err, "inserting evaluator")
	}
	return row.evaluator(), nil
}

func (repo *evaluatorRepository) GetEvaluator(ctx context.Context, filter evaluator.GetFilter) (evaluator.Evaluator, error) {
	var (
		row evaluatorRow
		err error
	)
	switch {
	case filter.ID != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM evaluators WHERE id = $1`, filter.ID)
	case filter.PINHash != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM evaluators WHERE pin_hash = $1`, filter.PINHash)
	default:
		return evaluator.Evaluator{}, evaluator.ErrNotFound
	}
	if err != nil {
		return evaluator.Evaluator{}, trapNoRowsErr(err, evaluator.ErrNotFound, "getting evaluator")
	}
	return row.evaluator(), nil
}

func (repo *evaluatorRepository) QueryEvaluators(ctx context.Context, filter evaluator.QueryFilter) ([]evaluator.Evaluator, error) {
	const q = `SELECT * FROM evaluators
		WHERE ($1 = '' OR school_id = $1) AND ($2 = '' OR fair_id = $2) AND ($3 = '' OR $3 = ANY(project_ids))
		ORDER BY lower(name)`
	var rows []evaluatorRow
	if err := repo.db.SelectContext(ctx, &rows, q, filter.SchoolID, filter.FairID, filter.ProjectID); err != nil {
		return nil, errors.Wrap(err, "querying evaluators")
	}
	evaluators := make([]evaluator.Evaluator, 0, len(rows))
	for _, r := range rows {
		evaluators = append(evaluators, r.evaluator())
	}
	return evaluators, nil
}

// missedUpdate explains why a guarded update of evaluator `id` matched no row.
func (repo *evaluatorRepository) missedUpdate(ctx context.Context, id string) error {
	var finished bool
	if err := repo.db.GetContext(ctx, &finished, `SELECT finished_all FROM evaluators WHERE id = $1`, id); err != nil {
		return trapNoRowsErr(err, evaluator.ErrNotFound, "getting evaluator")
	}
	if finished {
		return evaluator.ErrAlreadyFinalized
	}
	return errors.New("evaluator update matched no row")
}

func (repo *evaluatorRepository) UpdateEvaluator(ctx context.Context, id string, ch evaluator.Changes) (evaluator.Evaluator, error) {
	var sets []string
	args := []interface{}{id}
	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if ch.PINHash != nil {
		set("pin_hash", *ch.PINHash)
	}
	if ch.ProjectIDs != nil {
		set("project_ids", stringArray(ch.ProjectIDs))
	}
	if ch.Active != nil {
		set("active", *ch.Active)
	}
	if ch.LastLogin != nil {
		set("last_login", ch.LastLogin.UTC())
	}
	if !ch.UpdatedAt.IsZero() {
		set("updated_at", ch.UpdatedAt.UTC())
	}
	if len(sets) == 0 {
		return repo.GetEvaluator(ctx, evaluator.GetFilter{ID: id})
	}

	q := `UPDATE evaluators SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND NOT finished_all RETURNING *`
	var row evaluatorRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if violatesUnique(err, "evaluators_pin_hash_key") {
			return evaluator.Evaluator{}, evaluator.ErrPINExists
		}
		if errors.Cause(err) == sql.ErrNoRows {
			return evaluator.Evaluator{}, repo.missedUpdate(ctx, id)
		}
		return evaluator.Evaluator{}, errors.Wrap(err, "updating evaluator")
	}
	return row.evaluator(), nil
}

func (repo *evaluatorRepository) RemoveEvaluatorProject(ctx context.Context, id, projectID string, at time.Time) error {
	const q = `UPDATE evaluators SET project_ids = array_remove(project_ids, $2::text), updated_at = $3
		WHERE id = $1 AND NOT finished_all AND $2::text = ANY(project_ids)`
	if _, err := repo.db.ExecContext(ctx, q, id, projectID, at.UTC()); err != nil {
		return errors.Wrap(err, "removing evaluator project")
	}
	return nil
}

func (repo *evaluatorRepository) FinalizeEvaluator(ctx context.Context, id string, at time.Time) (evaluator.Evaluator, error) {
	const q = `UPDATE evaluators SET finished_all = TRUE, active = FALSE, finished_at = $2, updated_at = $2
		WHERE id = $1 AND NOT finished_all RETURNING *`
	var row evaluatorRow
	if err := repo.db.GetContext(ctx, &row, q, id, at.UTC()); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return evaluator.Evaluator{}, repo.missedUpdate(ctx, id)
		}
		return evaluator.Evaluator{}, errors.Wrap(err, "finalizing evaluator")
	}
	return row.evaluator(), nil
}

func (repo *evaluatorRepository) DeleteEvaluator(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM evaluators WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting evaluator")
	}
	return nil
}
