package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core/project"
)

type projectRow struct {
	ID           string         `db:"id"`
	SchoolID     string         `db:"school_id"`
	FairID       string         `db:"fair_id"`
	CategoryID   string         `db:"category_id"`
	Title        string         `db:"title"`
	Summary      string         `db:"summary"`
	Students     pq.StringArray `db:"students"`
	EvaluatorIDs pq.StringArray `db:"evaluator_ids"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func toProjectRow(p project.Project) projectRow {
	return projectRow{
		ID:           p.ID,
		SchoolID:     p.SchoolID,
		FairID:       p.FairID,
		CategoryID:   p.CategoryID,
		Title:        p.Title,
		Summary:      p.Summary,
		Students:     stringArray(p.Students),
		EvaluatorIDs: stringArray(p.EvaluatorIDs),
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
}

func (r projectRow) project() project.Project {
	return project.Project{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		FairID:       r.FairID,
		CategoryID:   r.CategoryID,
		Title:        r.Title,
		Summary:      r.Summary,
		Students:     fromArray(r.Students),
		EvaluatorIDs: fromArray(r.EvaluatorIDs),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type projectRepository struct {
	db *sqlx.DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo *projectRepository) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	p.ID = uuid.New().String()
	row := toProjectRow(p)
	const q = `INSERT INTO projects (id, school_id, fair_id, category_id, title, summary, students, evaluator_ids, created_at, updated_at)
		VALUES (:id, :school_id, :fair_id, :category_id, :title, :summary, :students, :evaluator_ids, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if violatesUnique(err, "projects_title_key") {
			return project.Project{}, project.ErrTitleExists
		}
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return row.project(), nil
}

func (repo *projectRepository) GetProject(ctx context.Context, id string) (project.Project, error) {
	var row projectRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM projects WHERE id = $1`, id); err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound, "getting project")
	}
	return row.project(), nil
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter project.QueryFilter) ([]project.Project, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.SchoolID != "" {
		where = append(where, "school_id = ?")
		args = append(args, filter.SchoolID)
	}
	if filter.FairID != "" {
		where = append(where, "fair_id = ?")
		args = append(args, filter.FairID)
	}
	if filter.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.EvaluatorID != "" {
		where = append(where, "? = ANY(evaluator_ids)")
		args = append(args, filter.EvaluatorID)
	}
	if len(filter.IDs) > 0 {
		where = append(where, "id IN (?)")
		args = append(args, filter.IDs)
	}

	q := `SELECT * FROM projects`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q, args, err := sqlx.In(q+` ORDER BY lower(title)`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building projects query")
	}

	var rows []projectRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.project())
	}
	return projects, nil
}

func (repo *projectRepository) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	q, args, err := sqlx.Named(`UPDATE projects SET category_id = :category_id, title = :title, summary = :summary,
		students = :students, updated_at = :updated_at WHERE id = :id RETURNING *`, toProjectRow(p))
	if err != nil {
		return project.Project{}, errors.Wrap(err, "building project update")
	}
	var row projectRow
	if err = repo.db.GetContext(ctx, &row, repo.db.Rebind(q), args...); err != nil {
		if violatesUnique(err, "projects_title_key") {
			return project.Project{}, project.ErrTitleExists
		}
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound, "updating project")
	}
	return row.project(), nil
}

func (repo *projectRepository) AddProjectEvaluator(ctx context.Context, id, evaluatorID string, at time.Time) error {
	const q = `UPDATE projects SET evaluator_ids = array_append(evaluator_ids, $2::text), updated_at = $3
		WHERE id = $1 AND NOT ($2::text = ANY(evaluator_ids))`
	if _, err := repo.db.ExecContext(ctx, q, id, evaluatorID, at.UTC()); err != nil {
		return errors.Wrap(err, "adding project evaluator")
	}
	return nil
}

func (repo *projectRepository) RemoveProjectEvaluator(ctx context.Context, id, evaluatorID string, at time.Time) error {
	const q = `UPDATE projects SET evaluator_ids = array_remove(evaluator_ids, $2::text), updated_at = $3
		WHERE id = $1 AND $2::text = ANY(evaluator_ids)`
	if _, err := repo.db.ExecContext(ctx, q, id, evaluatorID, at.UTC()); err != nil {
		return errors.Wrap(err, "removing project evaluator")
	}
	return nil
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return nil
}
