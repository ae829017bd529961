package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/feira/core/school"
)

type (
	schoolDoc struct {
		ID        string    `bson:"_id"`
		Name      string    `bson:"name"`
		NameKey   string    `bson:"name_key"`
		City      string    `bson:"city"`
		IsActive  bool      `bson:"is_active"`
		CreatedAt time.Time `bson:"created_at"`
		UpdatedAt time.Time `bson:"updated_at"`
	}

	fairDoc struct {
		ID        string    `bson:"_id"`
		SchoolID  string    `bson:"school_id"`
		Name      string    `bson:"name"`
		NameKey   string    `bson:"name_key"`
		Year      int       `bson:"year"`
		StartsOn  time.Time `bson:"starts_on"`
		EndsOn    time.Time `bson:"ends_on"`
		IsActive  bool      `bson:"is_active"`
		CreatedAt time.Time `bson:"created_at"`
		UpdatedAt time.Time `bson:"updated_at"`
	}

	categoryDoc struct {
		ID        string    `bson:"_id"`
		SchoolID  string    `bson:"school_id"`
		FairID    string    `bson:"fair_id"`
		Name      string    `bson:"name"`
		NameKey   string    `bson:"name_key"`
		CreatedAt time.Time `bson:"created_at"`
	}

	criterionDoc struct {
		ID        string    `bson:"_id"`
		SchoolID  string    `bson:"school_id"`
		FairID    string    `bson:"fair_id"`
		Name      string    `bson:"name"`
		NameKey   string    `bson:"name_key"`
		Weight    int       `bson:"weight"`
		Position  int       `bson:"position"`
		CreatedAt time.Time `bson:"created_at"`
	}
)

func toSchoolDoc(sch school.School) schoolDoc {
	return schoolDoc{sch.ID, sch.Name, nameKey(sch.Name), sch.City, sch.IsActive, sch.CreatedAt.UTC(), sch.UpdatedAt.UTC()}
}

func (d schoolDoc) school() school.School {
	return school.School{
		ID:        d.ID,
		Name:      d.Name,
		City:      d.City,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func toFairDoc(fair school.Fair) fairDoc {
	return fairDoc{
		ID:        fair.ID,
		SchoolID:  fair.SchoolID,
		Name:      fair.Name,
		NameKey:   nameKey(fair.Name),
		Year:      fair.Year,
		StartsOn:  fair.StartsOn.UTC(),
		EndsOn:    fair.EndsOn.UTC(),
		IsActive:  fair.IsActive,
		CreatedAt: fair.CreatedAt.UTC(),
		UpdatedAt: fair.UpdatedAt.UTC(),
	}
}

func (d fairDoc) fair() school.Fair {
	return school.Fair{
		ID:        d.ID,
		SchoolID:  d.SchoolID,
		Name:      d.Name,
		Year:      d.Year,
		StartsOn:  d.StartsOn.UTC(),
		EndsOn:    d.EndsOn.UTC(),
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func toCategoryDoc(cat school.Category) categoryDoc {
	return categoryDoc{cat.ID, cat.SchoolID, cat.FairID, cat.Name, nameKey(cat.Name), cat.CreatedAt.UTC()}
}

func (d categoryDoc) category() school.Category {
	return school.Category{ID: d.ID, SchoolID: d.SchoolID, FairID: d.FairID, Name: d.Name, CreatedAt: d.CreatedAt.UTC()}
}

func toCriterionDoc(crit school.Criterion) criterionDoc {
	return criterionDoc{
		ID:        crit.ID,
		SchoolID:  crit.SchoolID,
		FairID:    crit.FairID,
		Name:      crit.Name,
		NameKey:   nameKey(crit.Name),
		Weight:    crit.Weight,
		Position:  crit.Position,
		CreatedAt: crit.CreatedAt.UTC(),
	}
}

func (d criterionDoc) criterion() school.Criterion {
	return school.Criterion{
		ID:        d.ID,
		SchoolID:  d.SchoolID,
		FairID:    d.FairID,
		Name:      d.Name,
		Weight:    d.Weight,
		Position:  d.Position,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

type schoolRepository struct {
	schools    *mongo.Collection
	fairs      *mongo.Collection
	categories *mongo.Collection
	criteria   *mongo.Collection
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *mongo.Database) *schoolRepository {
	return &schoolRepository{
		schools:    db.Collection(schoolsColl),
		fairs:      db.Collection(fairsColl),
		categories: db.Collection(categoriesColl),
		criteria:   db.Collection(criteriaColl),
	}
}

func insert(ctx context.Context, coll *mongo.Collection, doc interface{}, msg string) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if isDuplicate(err) {
			return school.ErrNameExists
		}
		return errors.Wrap(err, msg)
	}
	return nil
}

func replace(ctx context.Context, coll *mongo.Collection, id string, doc interface{}, notFound error, msg string) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		if isDuplicate(err) {
			return school.ErrNameExists
		}
		return errors.Wrap(err, msg)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

// Schools

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	doc := toSchoolDoc(sch)
	if err := insert(ctx, repo.schools, doc, "inserting school"); err != nil {
		return school.School{}, err
	}
	return doc.school(), nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	var doc schoolDoc
	if err := repo.schools.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return school.School{}, trapNoDocErr(err, school.ErrSchoolNotFound, "getting school")
	}
	return doc.school(), nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter school.QueryFilter) ([]school.School, error) {
	query := bson.M{}
	if filter.Name != "" {
		query["name_key"] = nameKey(filter.Name)
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	var docs []schoolDoc
	if err := findAll(ctx, repo.schools, query, &docs, sortBy("name_key")); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(docs))
	for _, d := range docs {
		schools = append(schools, d.school())
	}
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	doc := toSchoolDoc(sch)
	if err := replace(ctx, repo.schools, sch.ID, doc, school.ErrSchoolNotFound, "updating school"); err != nil {
		return school.School{}, err
	}
	return doc.school(), nil
}

// Fairs

func (repo *schoolRepository) CreateFair(ctx context.Context, fair school.Fair) (school.Fair, error) {
	fair.ID = uuid.New().String()
	doc := toFairDoc(fair)
	if err := insert(ctx, repo.fairs, doc, "inserting fair"); err != nil {
		return school.Fair{}, err
	}
	return doc.fair(), nil
}

func (repo *schoolRepository) GetFair(ctx context.Context, id string) (school.Fair, error) {
	var doc fairDoc
	if err := repo.fairs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return school.Fair{}, trapNoDocErr(err, school.ErrFairNotFound, "getting fair")
	}
	return doc.fair(), nil
}

func (repo *schoolRepository) QueryFairs(ctx context.Context, schoolID string) ([]school.Fair, error) {
	var docs []fairDoc
	if err := findAll(ctx, repo.fairs, bson.M{"school_id": schoolID}, &docs, sortBy("-year", "name_key")); err != nil {
		return nil, errors.Wrap(err, "querying fairs")
	}
	fairs := make([]school.Fair, 0, len(docs))
	for _, d := range docs {
		fairs = append(fairs, d.fair())
	}
	return fairs, nil
}

func (repo *schoolRepository) UpdateFair(ctx context.Context, fair school.Fair) (school.Fair, error) {
	doc := toFairDoc(fair)
	if err := replace(ctx, repo.fairs, fair.ID, doc, school.ErrFairNotFound, "updating fair"); err != nil {
		return school.Fair{}, err
	}
	return doc.fair(), nil
}

// Categories

func (repo *schoolRepository) CreateCategory(ctx context.Context, cat school.Category) (school.Category, error) {
	cat.ID = uuid.New().String()
	doc := toCategoryDoc(cat)
	if err := insert(ctx, repo.categories, doc, "inserting category"); err != nil {
		return school.Category{}, err
	}
	return doc.category(), nil
}

func (repo *schoolRepository) GetCategory(ctx context.Context, id string) (school.Category, error) {
	var doc categoryDoc
	if err := repo.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return school.Category{}, trapNoDocErr(err, school.ErrCategoryNotFound, "getting category")
	}
	return doc.category(), nil
}

func (repo *schoolRepository) QueryCategories(ctx context.Context, fairID string) ([]school.Category, error) {
	var docs []categoryDoc
	if err := findAll(ctx, repo.categories, bson.M{"fair_id": fairID}, &docs, sortBy("name_key")); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	cats := make([]school.Category, 0, len(docs))
	for _, d := range docs {
		cats = append(cats, d.category())
	}
	return cats, nil
}

func (repo *schoolRepository) UpdateCategory(ctx context.Context, cat school.Category) (school.Category, error) {
	doc := toCategoryDoc(cat)
	if err := replace(ctx, repo.categories, cat.ID, doc, school.ErrCategoryNotFound, "updating category"); err != nil {
		return school.Category{}, err
	}
	return doc.category(), nil
}

func (repo *schoolRepository) DeleteCategory(ctx context.Context, id string) error {
	if _, err := repo.categories.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return nil
}

// Criteria

func (repo *schoolRepository) CreateCriterion(ctx context.Context, crit school.Criterion) (school.Criterion, error) {
	crit.ID = uuid.New().String()
	doc := toCriterionDoc(crit)
	if err := insert(ctx, repo.criteria, doc, "inserting criterion"); err != nil {
		return school.Criterion{}, err
	}
	return doc.criterion(), nil
}

func (repo *schoolRepository) GetCriterion(ctx context.Context, id string) (school.Criterion, error) {
	var doc criterionDoc
	if err := repo.criteria.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return school.Criterion{}, trapNoDocErr(err, school.ErrCriterionNotFound, "getting criterion")
	}
	return doc.criterion(), nil
}

func (repo *schoolRepository) QueryCriteria(ctx context.Context, schoolID, fairID string) ([]school.Criterion, error) {
	var docs []criterionDoc
	query := bson.M{"school_id": schoolID, "fair_id": fairID}
	if err := findAll(ctx, repo.criteria, query, &docs, sortBy("position", "name_key")); err != nil {
		return nil, errors.Wrap(err, "querying criteria")
	}
	crits := make([]school.Criterion, 0, len(docs))
	for _, d := range docs {
		crits = append(crits, d.criterion())
	}
	return crits, nil
}

func (repo *schoolRepository) UpdateCriterion(ctx context.Context, crit school.Criterion) (school.Criterion, error) {
	doc := toCriterionDoc(crit)
	if err := replace(ctx, repo.criteria, crit.ID, doc, school.ErrCriterionNotFound, "updating criterion"); err != nil {
		return school.Criterion{}, err
	}
	return doc.criterion(), nil
}

func (repo *schoolRepository) DeleteCriterion(ctx context.Context, id string) error {
	if _, err := repo.criteria.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "deleting criterion")
	}
	return nil
}
