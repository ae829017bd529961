// Package testutil builds services over the in-memory store and seeds them with fake data.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/access"
	"github.com/trezcool/feira/core/evaluation"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/project"
	"github.com/trezcool/feira/core/school"
	"github.com/trezcool/feira/core/user"
	inmemdb "github.com/trezcool/feira/storage/database/inmem"
)

// Password satisfies the password policy; every fixture user gets it.
const Password = "Xq7#mLp2vR"

var (
	faker = gofakeit.New(0)
	seq   uint64
)

// unique suffixes fake values so that fixtures never collide on unique names.
func unique(s string) string {
	return fmt.Sprintf("%s %d", s, atomic.AddUint64(&seq, 1))
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	evaluator.InitValidators(validate, translator)
	access.InitValidators(validate, translator)
	return validate
}

// Env holds the services of one isolated in-memory store.
type Env struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator

	Users       *user.Service
	Schools     *school.Service
	Projects    *project.Service
	Evaluators  *evaluator.Service
	Evaluations *evaluation.Service
	Access      *access.Service

	EvaluationRepo evaluation.Repository
}

// Repos is one storage engine's set of repositories.
type Repos struct {
	Users       user.Repository
	Schools     school.Repository
	Projects    project.Repository
	Evaluators  evaluator.Repository
	Evaluations evaluation.Repository
	Access      access.Repository
}

// InMemRepos returns the repositories of a fresh in-memory store.
func InMemRepos() Repos {
	db := inmemdb.Open()
	return Repos{
		Users:       inmemdb.NewUserRepository(db),
		Schools:     inmemdb.NewSchoolRepository(db),
		Projects:    inmemdb.NewProjectRepository(db),
		Evaluators:  inmemdb.NewEvaluatorRepository(db),
		Evaluations: inmemdb.NewEvaluationRepository(db),
		Access:      inmemdb.NewAccessRepository(db),
	}
}

func NewEnv() *Env {
	return NewEnvWith(InMemRepos())
}

// NewEnvWith wires the services over `repos`.
func NewEnvWith(repos Repos) *Env {
	conf := core.NewTestConfig()
	translator := core.NewTranslator()

	env := &Env{
		Conf:           conf,
		Translator:     translator,
		Validate:       NewValidator(translator),
		EvaluationRepo: repos.Evaluations,
	}
	env.Users = user.NewService(repos.Users)
	env.Schools = school.NewService(repos.Schools)
	env.Projects = project.NewService(repos.Projects, env.Schools)
	env.Evaluators = evaluator.NewService(repos.Evaluators, env.Projects, conf)
	env.Evaluations = evaluation.NewService(repos.Evaluations, env.Schools, env.Projects, env.Evaluators)
	env.Access = access.NewService(repos.Access, env.Schools, env.Users)
	return env
}

func fatalIf(t *testing.T, name string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s() failed: %v", name, err)
	}
}

func (env *Env) CreateUser(t *testing.T, schoolID string, roles ...string) user.User {
	t.Helper()
	uname := strings.ToLower(fmt.Sprintf("%s%d", faker.LetterN(6), atomic.AddUint64(&seq, 1)))
	usr, err := env.Users.Create(context.Background(), user.NewUser{
		SchoolID: schoolID,
		Name:     faker.Name(),
		Username: uname,
		Email:    uname + "@test.cd",
		Password: Password,
		Roles:    roles,
	})
	fatalIf(t, "CreateUser", err)
	return usr
}

func (env *Env) CreateSuperAdmin(t *testing.T) user.User {
	t.Helper()
	return env.CreateUser(t, "", user.RoleSuperAdmin)
}

func (env *Env) CreateSchoolAdmin(t *testing.T, schoolID string) user.User {
	t.Helper()
	return env.CreateUser(t, schoolID, user.RoleSchoolAdmin)
}

func (env *Env) CreateSchool(t *testing.T) school.School {
	t.Helper()
	sch, err := env.Schools.CreateSchool(context.Background(), school.NewSchool{
		Name: unique(faker.Company()),
		City: faker.City(),
	})
	fatalIf(t, "CreateSchool", err)
	return sch
}

func (env *Env) CreateFair(t *testing.T, schoolID string) school.Fair {
	t.Helper()
	starts := time.Now().UTC().Truncate(24 * time.Hour)
	fair, err := env.Schools.CreateFair(context.Background(), schoolID, school.NewFair{
		Name:     unique("Science Fair"),
		Year:     starts.Year(),
		StartsOn: starts,
		EndsOn:   starts.Add(48 * time.Hour),
	})
	fatalIf(t, "CreateFair", err)
	return fair
}

func (env *Env) CreateCategory(t *testing.T, fair school.Fair) school.Category {
	t.Helper()
	cat, err := env.Schools.CreateCategory(context.Background(), fair, school.NewCategory{Name: unique(faker.Noun())})
	fatalIf(t, "CreateCategory", err)
	return cat
}

func (env *Env) CreateCriterion(t *testing.T, fair school.Fair, weight, position int) school.Criterion {
	t.Helper()
	crit, err := env.Schools.CreateCriterion(context.Background(), fair, school.NewCriterion{
		Name:     unique(faker.Adjective()),
		Weight:   weight,
		Position: position,
	})
	fatalIf(t, "CreateCriterion", err)
	return crit
}

func (env *Env) CreateProject(t *testing.T, fair school.Fair, categoryID string, title ...string) project.Project {
	t.Helper()
	ttl := unique(faker.Sentence(3))
	if len(title) > 0 {
		ttl = title[0]
	}
	p, err := env.Projects.Create(context.Background(), fair, project.NewProject{
		CategoryID: categoryID,
		Title:      ttl,
		Summary:    faker.Sentence(8),
		Students:   []string{faker.Name(), faker.Name()},
	})
	fatalIf(t, "CreateProject", err)
	return p
}

func (env *Env) CreateEvaluator(t *testing.T, fair school.Fair, projectIDs ...string) evaluator.Created {
	t.Helper()
	created, err := env.Evaluators.Create(context.Background(), fair, evaluator.NewEvaluator{
		Name:       faker.Name(),
		Email:      faker.Email(),
		ProjectIDs: projectIDs,
	})
	fatalIf(t, "CreateEvaluator", err)
	return created
}

// Score is a ScoreInput holding score n.
func Score(n int) evaluation.ScoreInput {
	return evaluation.ScoreInput{Score: evaluation.ScoreValue(fmt.Sprint(n))}
}
