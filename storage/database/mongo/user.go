package mongorepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/feira/core/user"
)

type userDoc struct {
	ID           string     `bson:"_id"`
	SchoolID     string     `bson:"school_id"`
	Name         string     `bson:"name"`
	Username     string     `bson:"username"`
	Email        string     `bson:"email"`
	IsActive     bool       `bson:"is_active"`
	Roles        []string   `bson:"roles"`
	PasswordHash []byte     `bson:"password_hash"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	LastLogin    *time.Time `bson:"last_login"`
}

func toUserDoc(usr user.User) userDoc {
	doc := userDoc{
		ID:           usr.ID,
		SchoolID:     usr.SchoolID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        nonNil(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
	if !usr.LastLogin.IsZero() {
		doc.LastLogin = utcPtr(&usr.LastLogin)
	}
	return doc
}

func (d userDoc) user() user.User {
	usr := user.User{
		ID:           d.ID,
		SchoolID:     d.SchoolID,
		Name:         d.Name,
		Username:     d.Username,
		Email:        d.Email,
		IsActive:     d.IsActive,
		Roles:        nonNil(d.Roles),
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.LastLogin != nil {
		usr.LastLogin = d.LastLogin.UTC()
	}
	return usr
}

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *mongo.Database) *userRepository {
	return &userRepository{coll: db.Collection(usersColl)}
}

// trapDuplicateErr maps duplicate key errors to user.ErrUsernameExists | user.ErrEmailExists
func trapDuplicateErr(err error, msg string) error {
	if !isDuplicate(err) {
		return errors.Wrap(err, msg)
	}
	if strings.Contains(err.Error(), "email_key") {
		return user.ErrEmailExists
	}
	return user.ErrUsernameExists
}

func (repo *userRepository) CheckUserUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	or := bson.A{}
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return nil
	}
	query := bson.M{"$or": or, "_id": bson.M{"$nin": nonNil(excludedIDs)}}

	var doc userDoc
	if err := repo.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		return trapNoDocErr(err, nil, "checking user uniqueness")
	}
	if username != "" && doc.Username == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	doc := toUserDoc(usr)
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return user.User{}, trapDuplicateErr(err, "inserting user")
	}
	return doc.user(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var query bson.M
	switch {
	case filter.ID != "":
		query = bson.M{"_id": filter.ID}
	case filter.Username != "":
		query = bson.M{"username": filter.Username}
	default:
		return user.User{}, user.ErrNotFound
	}
	var doc userDoc
	if err := repo.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		return user.User{}, trapNoDocErr(err, user.ErrNotFound, "getting user")
	}
	return doc.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := bson.M{}
	if filter.SchoolID != "" {
		query["school_id"] = filter.SchoolID
	}
	if filter.Role != "" {
		query["roles"] = filter.Role
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	var docs []userDoc
	if err := findAll(ctx, repo.coll, query, &docs, sortBy("username")); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc := toUserDoc(usr)
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": usr.ID}, doc)
	if err != nil {
		return user.User{}, trapDuplicateErr(err, "updating user")
	}
	if res.MatchedCount == 0 {
		return user.User{}, user.ErrNotFound
	}
	return doc.user(), nil
}
