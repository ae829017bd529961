// Package mongorepos stores the domain in a MongoDB database.
package mongorepos

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collections
const (
	usersColl       = "users"
	schoolsColl     = "schools"
	fairsColl       = "fairs"
	categoriesColl  = "categories"
	criteriaColl    = "criteria"
	projectsColl    = "projects"
	evaluatorsColl  = "evaluators"
	evaluationsColl = "evaluations"
	accessColl      = "access_requests"
)

var indexes = map[string][]mongo.IndexModel{
	usersColl: {
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_key")},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_key").
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
		},
	},
	schoolsColl: {
		{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	fairsColl: {
		{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	categoriesColl: {
		{Keys: bson.D{{Key: "fair_id", Value: 1}, {Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	criteriaColl: {
		{Keys: bson.D{{Key: "fair_id", Value: 1}, {Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	projectsColl: {
		{Keys: bson.D{{Key: "fair_id", Value: 1}, {Key: "title_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "evaluator_ids", Value: 1}}},
	},
	evaluatorsColl: {
		{Keys: bson.D{{Key: "pin_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "fair_id", Value: 1}, {Key: "name_key", Value: 1}}},
	},
	evaluationsColl: {
		{Keys: bson.D{{Key: "evaluator_id", Value: 1}, {Key: "project_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "fair_id", Value: 1}}},
	},
	accessColl: {
		{Keys: bson.D{{Key: "status", Value: 1}}},
	},
}

// EnsureIndexes creates the indexes the repositories rely on, uniqueness ones included.
// It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}

// nameKey is the case-insensitive uniqueness key of a name.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// trapNoDocErr maps mongo "no documents" err to `notFound`
func trapNoDocErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == mongo.ErrNoDocuments {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isDuplicate(err error) bool {
	return mongo.IsDuplicateKeyError(errors.Cause(err))
}

// findAll runs `filter` against `coll` and decodes every document into `out` (a pointer to a slice).
func findAll(ctx context.Context, coll *mongo.Collection, filter interface{}, out interface{}, opts ...*options.FindOptions) error {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func sortBy(keys ...string) *options.FindOptions {
	sort := bson.D{}
	for _, k := range keys {
		dir := 1
		if strings.HasPrefix(k, "-") {
			k, dir = k[1:], -1
		}
		sort = append(sort, bson.E{Key: k, Value: dir})
	}
	return options.Find().SetSort(sort)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
