package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/feira/core/project"
)

type projectDoc struct {
	ID           string    `bson:"_id"`
	SchoolID     string    `bson:"school_id"`
	FairID       string    `bson:"fair_id"`
	CategoryID   string    `bson:"category_id"`
	Title        string    `bson:"title"`
	TitleKey     string    `bson:"title_key"`
	Summary      string    `bson:"summary"`
	Students     []string  `bson:"students"`
	EvaluatorIDs []string  `bson:"evaluator_ids"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toProjectDoc(p project.Project) projectDoc {
	return projectDoc{
		ID:           p.ID,
		SchoolID:     p.SchoolID,
		FairID:       p.FairID,
		CategoryID:   p.CategoryID,
		Title:        p.Title,
		TitleKey:     nameKey(p.Title),
		Summary:      p.Summary,
		Students:     nonNil(p.Students),
		EvaluatorIDs: nonNil(p.EvaluatorIDs),
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
}

func (d projectDoc) project() project.Project {
	return project.Project{
		ID:           d.ID,
		SchoolID:     d.SchoolID,
		FairID:       d.FairID,
		CategoryID:   d.CategoryID,
		Title:        d.Title,
		Summary:      d.Summary,
		Students:     nonNil(d.Students),
		EvaluatorIDs: nonNil(d.EvaluatorIDs),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type projectRepository struct {
	coll *mongo.Collection
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *mongo.Database) *projectRepository {
	return &projectRepository{coll: db.Collection(projectsColl)}
}

func (repo *projectRepository) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	p.ID = uuid.New().String()
	doc := toProjectDoc(p)
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		if isDuplicate(err) {
			return project.Project{}, project.ErrTitleExists
		}
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return doc.project(), nil
}

func (repo *projectRepository) GetProject(ctx context.Context, id string) (project.Project, error) {
	var doc projectDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return project.Project{}, trapNoDocErr(err, project.ErrNotFound, "getting project")
	}
	return doc.project(), nil
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter project.QueryFilter) ([]project.Project, error) {
	query := bson.M{}
	if filter.SchoolID != "" {
		query["school_id"] = filter.SchoolID
	}
	if filter.FairID != "" {
		query["fair_id"] = filter.FairID
	}
	if filter.CategoryID != "" {
		query["category_id"] = filter.CategoryID
	}
	if filter.EvaluatorID != "" {
		query["evaluator_ids"] = filter.EvaluatorID
	}
	if len(filter.IDs) > 0 {
		query["_id"] = bson.M{"$in": filter.IDs}
	}

	var docs []projectDoc
	if err := findAll(ctx, repo.coll, query, &docs, sortBy("title_key")); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	projects := make([]project.Project, 0, len(docs))
	for _, d := range docs {
		projects = append(projects, d.project())
	}
	return projects, nil
}

func (repo *projectRepository) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	doc := toProjectDoc(p)
	update := bson.M{"$set": bson.M{
		"category_id": doc.CategoryID,
		"title":       doc.Title,
		"title_key":   doc.TitleKey,
		"summary":     doc.Summary,
		"students":    doc.Students,
		"updated_at":  doc.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var stored projectDoc
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": p.ID}, update, opts).Decode(&stored); err != nil {
		if isDuplicate(err) {
			return project.Project{}, project.ErrTitleExists
		}
		return project.Project{}, trapNoDocErr(err, project.ErrNotFound, "updating project")
	}
	return stored.project(), nil
}

func (repo *projectRepository) AddProjectEvaluator(ctx context.Context, id, evaluatorID string, at time.Time) error {
	update := bson.M{
		"$addToSet": bson.M{"evaluator_ids": evaluatorID},
		"$set":      bson.M{"updated_at": at.UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return errors.Wrap(err, "adding project evaluator")
	}
	return nil
}

func (repo *projectRepository) RemoveProjectEvaluator(ctx context.Context, id, evaluatorID string, at time.Time) error {
	update := bson.M{
		"$pull": bson.M{"evaluator_ids": evaluatorID},
		"$set":  bson.M{"updated_at": at.UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id, "evaluator_ids": evaluatorID}, update); err != nil {
		return errors.Wrap(err, "removing project evaluator")
	}
	return nil
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string) error {
	if _, err := repo.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return nil
}
