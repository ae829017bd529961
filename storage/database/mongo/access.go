package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/feira/core/access"
)

type accessDoc struct {
	ID            string     `bson:"_id"`
	SchoolName    string     `bson:"school_name"`
	SchoolKey     string     `bson:"school_key"`
	City          string     `bson:"city"`
	ContactName   string     `bson:"contact_name"`
	ContactEmail  string     `bson:"contact_email"`
	AdminUsername string     `bson:"admin_username"`
	PasswordHash  []byte     `bson:"password_hash"`
	Status        string     `bson:"status"`
	Reason        string     `bson:"reason"`
	ReviewedBy    string     `bson:"reviewed_by"`
	SchoolID      string     `bson:"school_id"`
	CreatedAt     time.Time  `bson:"created_at"`
	ReviewedAt    *time.Time `bson:"reviewed_at"`
}

func toAccessDoc(r access.Request) accessDoc {
	return accessDoc{
		ID:            r.ID,
		SchoolName:    r.SchoolName,
		SchoolKey:     nameKey(r.SchoolName),
		City:          r.City,
		ContactName:   r.ContactName,
		ContactEmail:  r.ContactEmail,
		AdminUsername: r.AdminUsername,
		PasswordHash:  r.PasswordHash,
		Status:        r.Status,
		Reason:        r.Reason,
		ReviewedBy:    r.ReviewedBy,
		SchoolID:      r.SchoolID,
		CreatedAt:     r.CreatedAt.UTC(),
		ReviewedAt:    utcPtr(r.ReviewedAt),
	}
}

func (d accessDoc) request() access.Request {
	return access.Request{
		ID:            d.ID,
		SchoolName:    d.SchoolName,
		City:          d.City,
		ContactName:   d.ContactName,
		ContactEmail:  d.ContactEmail,
		AdminUsername: d.AdminUsername,
		PasswordHash:  d.PasswordHash,
		Status:        d.Status,
		Reason:        d.Reason,
		ReviewedBy:    d.ReviewedBy,
		SchoolID:      d.SchoolID,
		CreatedAt:     d.CreatedAt.UTC(),
		ReviewedAt:    utcPtr(d.ReviewedAt),
	}
}

type accessRepository struct {
	coll *mongo.Collection
}

var _ access.Repository = (*accessRepository)(nil) // interface compliance check

func NewAccessRepository(db *mongo.Database) *accessRepository {
	return &accessRepository{coll: db.Collection(accessColl)}
}

func (repo *accessRepository) CreateRequest(ctx context.Context, r access.Request) (access.Request, error) {
	r.ID = uuid.New().String()
	doc := toAccessDoc(r)
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return access.Request{}, errors.Wrap(err, "inserting access request")
	}
	return doc.request(), nil
}

func (repo *accessRepository) GetRequest(ctx context.Context, id string) (access.Request, error) {
	var doc accessDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return access.Request{}, trapNoDocErr(err, access.ErrNotFound, "getting access request")
	}
	return doc.request(), nil
}

func (repo *accessRepository) QueryRequests(ctx context.Context, filter access.QueryFilter) ([]access.Request, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.SchoolName != "" {
		query["school_key"] = nameKey(filter.SchoolName)
	}
	if filter.AdminUsername != "" {
		query["admin_username"] = filter.AdminUsername
	}
	var docs []accessDoc
	if err := findAll(ctx, repo.coll, query, &docs, sortBy("-created_at")); err != nil {
		return nil, errors.Wrap(err, "querying access requests")
	}
	reqs := make([]access.Request, 0, len(docs))
	for _, d := range docs {
		reqs = append(reqs, d.request())
	}
	return reqs, nil
}

func (repo *accessRepository) ReviewRequest(ctx context.Context, r access.Request) (access.Request, error) {
	doc := toAccessDoc(r)
	update := bson.M{"$set": bson.M{
		"status":      doc.Status,
		"reason":      doc.Reason,
		"reviewed_by": doc.ReviewedBy,
		"school_id":   doc.SchoolID,
		"reviewed_at": doc.ReviewedAt,
	}}
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": r.ID, "status": access.StatusPending}, update)
	if err != nil {
		return access.Request{}, errors.Wrap(err, "reviewing access request")
	}
	if res.MatchedCount == 0 {
		if _, err = repo.GetRequest(ctx, r.ID); err != nil {
			return access.Request{}, err
		}
		return access.Request{}, access.ErrInvalidTransition
	}
	return doc.request(), nil
}
