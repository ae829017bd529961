package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/feira/core/evaluator"
)

type evaluatorDoc struct {
	ID          string     `bson:"_id"`
	SchoolID    string     `bson:"school_id"`
	FairID      string     `bson:"fair_id"`
	Name        string     `bson:"name"`
	NameKey     string     `bson:"name_key"`
	Email       string     `bson:"email"`
	PINHash     string     `bson:"pin_hash"`
	ProjectIDs  []string   `bson:"project_ids"`
	Active      bool       `bson:"active"`
	FinishedAll bool       `bson:"finished_all"`
	FinishedAt  *time.Time `bson:"finished_at"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	LastLogin   *time.Time `bson:"last_login"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toEvaluatorDoc(e evaluator.Evaluator) evaluatorDoc {
	return evaluatorDoc{
		ID:          e.ID,
		SchoolID:    e.SchoolID,
		FairID:      e.FairID,
		Name:        e.Name,
		NameKey:     nameKey(e.Name),
		Email:       e.Email,
		PINHash:     e.PINHash,
		ProjectIDs:  nonNil(e.ProjectIDs),
		Active:      e.Active,
		FinishedAll: e.FinishedAll,
		FinishedAt:  utcPtr(e.FinishedAt),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
		LastLogin:   utcPtr(e.LastLogin),
	}
}

func (d evaluatorDoc) evaluator() evaluator.Evaluator {
	return evaluator.Evaluator{
		ID:          d.ID,
		SchoolID:    d.SchoolID,
		FairID:      d.FairID,
		Name:        d.Name,
		Email:       d.Email,
		PINHash:     d.PINHash,
		ProjectIDs:  nonNil(d.ProjectIDs),
		Active:      d.Active,
		FinishedAll: d.FinishedAll,
		FinishedAt:  utcPtr(d.FinishedAt),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		LastLogin:   utcPtr(d.LastLogin),
	}
}

type evaluatorRepository struct {
	coll *mongo.Collection
}

var _ evaluator.Repository = (*evaluatorRepository)(nil) // interface compliance check

func NewEvaluatorRepository(db *mongo.Database) *evaluatorRepository {
	return &evaluatorRepository{coll: db.Collection(evaluatorsColl)}
}

func (repo *evaluatorRepository) CreateEvaluator(ctx context.Context, e evaluator.Evaluator) (evaluator.Evaluator, error) {
	e.ID = uuid.New().String()
	e.FinishedAll = false
	e.FinishedAt = nil
	doc := toEvaluatorDoc(e)
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		if isDuplicate(err) {
			return evaluator.Evaluator{}, evaluator.ErrPINExists
		}
		return evaluator.Evaluator{}, errors.Wrap(err, "inserting evaluator")
	}
	return doc.evaluator(), nil
}

func (repo *evaluatorRepository) GetEvaluator(ctx context.Context, filter evaluator.GetFilter) (evaluator.Evaluator, error) {
	var query bson.M
	switch {
	case filter.ID != "":
		query = bson.M{"_id": filter.ID}
	case filter.PINHash != "":
		query = bson.M{"pin_hash": filter.PINHash}
	default:
		return evaluator.Evaluator{}, evaluator.ErrNotFound
	}
	var doc evaluatorDoc
	if err := repo.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		return evaluator.Evaluator{}, trapNoDocErr(err, evaluator.ErrNotFound, "getting evaluator")
	}
	return doc.evaluator(), nil
}

func (repo *evaluatorRepository) QueryEvaluators(ctx context.Context, filter evaluator.QueryFilter) ([]evaluator.Evaluator, error) {
	query := bson.M{}
	if filter.SchoolID != "" {
		query["school_id"] = filter.SchoolID
	}
	if filter.FairID != "" {
		query["fair_id"] = filter.FairID
	}
	if filter.ProjectID != "" {
		query["project_ids"] = filter.ProjectID
	}
	var docs []evaluatorDoc
	if err := findAll(ctx, repo.coll, query, &docs, sortBy("name_key")); err != nil {
		return nil, errors.Wrap(err, "querying evaluators")
	}
	evaluators := make([]evaluator.Evaluator, 0, len(docs))
	for _, d := range docs {
		evaluators = append(evaluators, d.evaluator())
	}
	return evaluators, nil
}

// missedUpdate explains why a guarded update of evaluator `id` matched no document.
func (repo *evaluatorRepository) missedUpdate(ctx context.Context, id string) error {
	stored, err := repo.GetEvaluator(ctx, evaluator.GetFilter{ID: id})
	if err != nil {
		return err
	}
	if stored.FinishedAll {
		return evaluator.ErrAlreadyFinalized
	}
	return errors.New("evaluator update matched no document")
}

func (repo *evaluatorRepository) UpdateEvaluator(ctx context.Context, id string, ch evaluator.Changes) (evaluator.Evaluator, error) {
	set := bson.M{}
	if ch.PINHash != nil {
		set["pin_hash"] = *ch.PINHash
	}
	if ch.ProjectIDs != nil {
		set["project_ids"] = ch.ProjectIDs
	}
	if ch.Active != nil {
		set["active"] = *ch.Active
	}
	if ch.LastLogin != nil {
		set["last_login"] = ch.LastLogin.UTC()
	}
	if !ch.UpdatedAt.IsZero() {
		set["updated_at"] = ch.UpdatedAt.UTC()
	}
	if len(set) == 0 {
		return repo.GetEvaluator(ctx, evaluator.GetFilter{ID: id})
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc evaluatorDoc
	err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "finished_all": false}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if isDuplicate(err) {
			return evaluator.Evaluator{}, evaluator.ErrPINExists
		}
		if errors.Cause(err) == mongo.ErrNoDocuments {
			return evaluator.Evaluator{}, repo.missedUpdate(ctx, id)
		}
		return evaluator.Evaluator{}, errors.Wrap(err, "updating evaluator")
	}
	return doc.evaluator(), nil
}

func (repo *evaluatorRepository) RemoveEvaluatorProject(ctx context.Context, id, projectID string, at time.Time) error {
	update := bson.M{
		"$pull": bson.M{"project_ids": projectID},
		"$set":  bson.M{"updated_at": at.UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id, "finished_all": false, "project_ids": projectID}, update); err != nil {
		return errors.Wrap(err, "removing evaluator project")
	}
	return nil
}

func (repo *evaluatorRepository) FinalizeEvaluator(ctx context.Context, id string, at time.Time) (evaluator.Evaluator, error) {
	at = at.UTC()
	update := bson.M{"$set": bson.M{
		"finished_all": true,
		"active":       false,
		"finished_at":  at,
		"updated_at":   at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc evaluatorDoc
	err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "finished_all": false}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Cause(err) == mongo.ErrNoDocuments {
			return evaluator.Evaluator{}, repo.missedUpdate(ctx, id)
		}
		return evaluator.Evaluator{}, errors.Wrap(err, "finalizing evaluator")
	}
	return doc.evaluator(), nil
}

func (repo *evaluatorRepository) DeleteEvaluator(ctx context.Context, id string) error {
	if _, err := repo.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "deleting evaluator")
	}
	return nil
}
