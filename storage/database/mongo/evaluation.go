package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/feira/core/evaluation"
)

type (
	scoreItemDoc struct {
		CriterionID string `bson:"criterion_id"`
		Score       *int   `bson:"score"`
		Comment     string `bson:"comment"`
	}

	evaluationDoc struct {
		ID          string         `bson:"_id"`
		EvaluatorID string         `bson:"evaluator_id"`
		ProjectID   string         `bson:"project_id"`
		SchoolID    string         `bson:"school_id"`
		FairID      string         `bson:"fair_id"`
		Items       []scoreItemDoc `bson:"items"`
		HasAnyScore bool           `bson:"has_any_score"`
		CreatedAt   time.Time      `bson:"created_at"`
		UpdatedAt   time.Time      `bson:"updated_at"`
	}
)

func toItemDocs(items []evaluation.ScoreItem) []scoreItemDoc {
	docs := make([]scoreItemDoc, 0, len(items))
	for _, item := range items {
		docs = append(docs, scoreItemDoc{CriterionID: item.CriterionID, Score: item.Score, Comment: item.Comment})
	}
	return docs
}

func (d evaluationDoc) evaluation() evaluation.Evaluation {
	items := make([]evaluation.ScoreItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, evaluation.ScoreItem{CriterionID: item.CriterionID, Score: item.Score, Comment: item.Comment})
	}
	return evaluation.Evaluation{
		ID:          d.ID,
		EvaluatorID: d.EvaluatorID,
		ProjectID:   d.ProjectID,
		SchoolID:    d.SchoolID,
		FairID:      d.FairID,
		Items:       items,
		HasAnyScore: d.HasAnyScore,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type evaluationRepository struct {
	coll *mongo.Collection
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *mongo.Database) *evaluationRepository {
	return &evaluationRepository{coll: db.Collection(evaluationsColl)}
}

func (repo *evaluationRepository) GetEvaluation(ctx context.Context, evaluatorID, projectID string) (evaluation.Evaluation, error) {
	var doc evaluationDoc
	err := repo.coll.FindOne(ctx, bson.M{"evaluator_id": evaluatorID, "project_id": projectID}).Decode(&doc)
	if err != nil {
		return evaluation.Evaluation{}, trapNoDocErr(err, evaluation.ErrNotFound, "getting evaluation")
	}
	return doc.evaluation(), nil
}

// SaveEvaluation upserts on (evaluator_id, project_id); the stored ID and creation date win.
func (repo *evaluationRepository) SaveEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	filter := bson.M{"evaluator_id": ev.EvaluatorID, "project_id": ev.ProjectID}
	update := bson.M{
		"$set": bson.M{
			"items":         toItemDocs(ev.Items),
			"has_any_score": ev.HasAnyScore,
			"updated_at":    ev.UpdatedAt.UTC(),
		},
		"$setOnInsert": bson.M{
			"_id":        ev.ID,
			"school_id":  ev.SchoolID,
			"fair_id":    ev.FairID,
			"created_at": ev.CreatedAt.UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc evaluationDoc
	if err := repo.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "upserting evaluation")
	}
	return doc.evaluation(), nil
}

func (repo *evaluationRepository) QueryEvaluations(ctx context.Context, filter evaluation.QueryFilter) ([]evaluation.Evaluation, error) {
	query := bson.M{}
	if filter.SchoolID != "" {
		query["school_id"] = filter.SchoolID
	}
	if filter.FairID != "" {
		query["fair_id"] = filter.FairID
	}
	if filter.EvaluatorID != "" {
		query["evaluator_id"] = filter.EvaluatorID
	}
	if filter.ProjectID != "" {
		query["project_id"] = filter.ProjectID
	}
	var docs []evaluationDoc
	if err := findAll(ctx, repo.coll, query, &docs, sortBy("created_at")); err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	evals := make([]evaluation.Evaluation, 0, len(docs))
	for _, d := range docs {
		evals = append(evals, d.evaluation())
	}
	return evals, nil
}
