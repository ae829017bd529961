package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/feira/core/school"
)

type (
	schoolRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		City      string    `db:"city"`
		IsActive  bool      `db:"is_active"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	fairRow struct {
		ID        string    `db:"id"`
		SchoolID  string    `db:"school_id"`
		Name      string    `db:"name"`
		Year      int       `db:"year"`
		StartsOn  null.Time `db:"starts_on"`
		EndsOn    null.Time `db:"ends_on"`
		IsActive  bool      `db:"is_active"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	categoryRow struct {
		ID        string    `db:"id"`
		SchoolID  string    `db:"school_id"`
		FairID    string    `db:"fair_id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}

	criterionRow struct {
		ID        string    `db:"id"`
		SchoolID  string    `db:"school_id"`
		FairID    string    `db:"fair_id"`
		Name      string    `db:"name"`
		Weight    int       `db:"weight"`
		Position  int       `db:"position"`
		CreatedAt time.Time `db:"created_at"`
	}
)

func (r schoolRow) school() school.School {
	return school.School{
		ID:        r.ID,
		Name:      r.Name,
		City:      r.City,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r fairRow) fair() school.Fair {
	return school.Fair{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Name:      r.Name,
		Year:      r.Year,
		StartsOn:  r.StartsOn.Time.UTC(),
		EndsOn:    r.EndsOn.Time.UTC(),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r categoryRow) category() school.Category {
	return school.Category{ID: r.ID, SchoolID: r.SchoolID, FairID: r.FairID, Name: r.Name, CreatedAt: r.CreatedAt.UTC()}
}

func (r criterionRow) criterion() school.Criterion {
	return school.Criterion{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		FairID:    r.FairID,
		Name:      r.Name,
		Weight:    r.Weight,
		Position:  r.Position,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

// exec runs a named statement, mapping unique violations to school.ErrNameExists
// and "no row affected" to `notFound`.
func (repo *schoolRepository) exec(ctx context.Context, query string, arg interface{}, notFound error, msg string) error {
	res, err := repo.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		if violatesUnique(err) {
			return school.ErrNameExists
		}
		return errors.Wrap(err, msg)
	}
	if notFound != nil {
		return checkAffected(res, notFound)
	}
	return nil
}

// Schools

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	row := schoolRow{sch.ID, sch.Name, sch.City, sch.IsActive, sch.CreatedAt.UTC(), sch.UpdatedAt.UTC()}
	const q = `INSERT INTO schools (id, name, city, is_active, created_at, updated_at)
		VALUES (:id, :name, :city, :is_active, :created_at, :updated_at)`
	if err := repo.exec(ctx, q, row, nil, "inserting school"); err != nil {
		return school.School{}, err
	}
	return row.school(), nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	var row schoolRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM schools WHERE id = $1`, id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrSchoolNotFound, "getting school")
	}
	return row.school(), nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter school.QueryFilter) ([]school.School, error) {
	q := `SELECT * FROM schools WHERE ($1 = '' OR lower(name) = lower($1))`
	args := []interface{}{filter.Name}
	if filter.IsActive != nil {
		q += ` AND is_active = $2`
		args = append(args, *filter.IsActive)
	}
	var rows []schoolRow
	if err := repo.db.SelectContext(ctx, &rows, q+` ORDER BY lower(name)`, args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.school())
	}
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	row := schoolRow{sch.ID, sch.Name, sch.City, sch.IsActive, sch.CreatedAt.UTC(), sch.UpdatedAt.UTC()}
	const q = `UPDATE schools SET name = :name, city = :city, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	if err := repo.exec(ctx, q, row, school.ErrSchoolNotFound, "updating school"); err != nil {
		return school.School{}, err
	}
	return row.school(), nil
}

// Fairs

func toFairRow(fair school.Fair) fairRow {
	return fairRow{
		ID:        fair.ID,
		SchoolID:  fair.SchoolID,
		Name:      fair.Name,
		Year:      fair.Year,
		StartsOn:  nullTime(fair.StartsOn),
		EndsOn:    nullTime(fair.EndsOn),
		IsActive:  fair.IsActive,
		CreatedAt: fair.CreatedAt.UTC(),
		UpdatedAt: fair.UpdatedAt.UTC(),
	}
}

func (repo *schoolRepository) CreateFair(ctx context.Context, fair school.Fair) (school.Fair, error) {
	fair.ID = uuid.New().String()
	row := toFairRow(fair)
	const q = `INSERT INTO fairs (id, school_id, name, year, starts_on, ends_on, is_active, created_at, updated_at)
		VALUES (:id, :school_id, :name, :year, :starts_on, :ends_on, :is_active, :created_at, :updated_at)`
	if err := repo.exec(ctx, q, row, nil, "inserting fair"); err != nil {
		return school.Fair{}, err
	}
	return row.fair(), nil
}

func (repo *schoolRepository) GetFair(ctx context.Context, id string) (school.Fair, error) {
	var row fairRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM fairs WHERE id = $1`, id); err != nil {
		return school.Fair{}, trapNoRowsErr(err, school.ErrFairNotFound, "getting fair")
	}
	return row.fair(), nil
}

func (repo *schoolRepository) QueryFairs(ctx context.Context, schoolID string) ([]school.Fair, error) {
	var rows []fairRow
	const q = `SELECT * FROM fairs WHERE school_id = $1 ORDER BY year DESC, lower(name)`
	if err := repo.db.SelectContext(ctx, &rows, q, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying fairs")
	}
	fairs := make([]school.Fair, 0, len(rows))
	for _, r := range rows {
		fairs = append(fairs, r.fair())
	}
	return fairs, nil
}

func (repo *schoolRepository) UpdateFair(ctx context.Context, fair school.Fair) (school.Fair, error) {
	row := toFairRow(fair)
	const q = `UPDATE fairs SET name = :name, year = :year, starts_on = :starts_on, ends_on = :ends_on,
		is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if err := repo.exec(ctx, q, row, school.ErrFairNotFound, "updating fair"); err != nil {
		return school.Fair{}, err
	}
	return row.fair(), nil
}

// Categories

func (repo *schoolRepository) CreateCategory(ctx context.Context, cat school.Category) (school.Category, error) {
	row := categoryRow{uuid.New().String(), cat.SchoolID, cat.FairID, cat.Name, cat.CreatedAt.UTC()}
	const q = `INSERT INTO categories (id, school_id, fair_id, name, created_at)
		VALUES (:id, :school_id, :fair_id, :name, :created_at)`
	if err := repo.exec(ctx, q, row, nil, "inserting category"); err != nil {
		return school.Category{}, err
	}
	return row.category(), nil
}

func (repo *schoolRepository) GetCategory(ctx context.Context, id string) (school.Category, error) {
	var row categoryRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM categories WHERE id = $1`, id); err != nil {
		return school.Category{}, trapNoRowsErr(err, school.ErrCategoryNotFound, "getting category")
	}
	return row.category(), nil
}

func (repo *schoolRepository) QueryCategories(ctx context.Context, fairID string) ([]school.Category, error) {
	var rows []categoryRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM categories WHERE fair_id = $1 ORDER BY lower(name)`, fairID); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	cats := make([]school.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, r.category())
	}
	return cats, nil
}

func (repo *schoolRepository) UpdateCategory(ctx context.Context, cat school.Category) (school.Category, error) {
	row := categoryRow{cat.ID, cat.SchoolID, cat.FairID, cat.Name, cat.CreatedAt.UTC()}
	if err := repo.exec(ctx, `UPDATE categories SET name = :name WHERE id = :id`, row, school.ErrCategoryNotFound, "updating category"); err != nil {
		return school.Category{}, err
	}
	return row.category(), nil
}

func (repo *schoolRepository) DeleteCategory(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return nil
}

// Criteria

func toCriterionRow(crit school.Criterion) criterionRow {
	return criterionRow{crit.ID, crit.SchoolID, crit.FairID, crit.Name, crit.Weight, crit.Position, crit.CreatedAt.UTC()}
}

func (repo *schoolRepository) CreateCriterion(ctx context.Context, crit school.Criterion) (school.Criterion, error) {
	crit.ID = uuid.New().String()
	row := toCriterionRow(crit)
	const q = `INSERT INTO criteria (id, school_id, fair_id, name, weight, position, created_at)
		VALUES (:id, :school_id, :fair_id, :name, :weight, :position, :created_at)`
	if err := repo.exec(ctx, q, row, nil, "inserting criterion"); err != nil {
		return school.Criterion{}, err
	}
	return row.criterion(), nil
}

func (repo *schoolRepository) GetCriterion(ctx context.Context, id string) (school.Criterion, error) {
	var row criterionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM criteria WHERE id = $1`, id); err != nil {
		return school.Criterion{}, trapNoRowsErr(err, school.ErrCriterionNotFound, "getting criterion")
	}
	return row.criterion(), nil
}

func (repo *schoolRepository) QueryCriteria(ctx context.Context, schoolID, fairID string) ([]school.Criterion, error) {
	var rows []criterionRow
	const q = `SELECT * FROM criteria WHERE school_id = $1 AND fair_id = $2 ORDER BY position, lower(name)`
	if err := repo.db.SelectContext(ctx, &rows, q, schoolID, fairID); err != nil {
		return nil, errors.Wrap(err, "querying criteria")
	}
	crits := make([]school.Criterion, 0, len(rows))
	for _, r := range rows {
		crits = append(crits, r.criterion())
	}
	return crits, nil
}

func (repo *schoolRepository) UpdateCriterion(ctx context.Context, crit school.Criterion) (school.Criterion, error) {
	row := toCriterionRow(crit)
	const q = `UPDATE criteria SET name = :name, weight = :weight, position = :position WHERE id = :id`
	if err := repo.exec(ctx, q, row, school.ErrCriterionNotFound, "updating criterion"); err != nil {
		return school.Criterion{}, err
	}
	return row.criterion(), nil
}

func (repo *schoolRepository) DeleteCriterion(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM criteria WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting criterion")
	}
	return nil
}
