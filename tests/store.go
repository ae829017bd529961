package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/access"
	"github.com/trezcool/feira/core/evaluation"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/project"
	"github.com/trezcool/feira/core/school"
	"github.com/trezcool/feira/core/user"
)

// RunStoreTests checks the guarantees every storage engine must give the services:
// case-insensitive unique names, guarded one-way transitions and evaluation upserts.
func RunStoreTests(t *testing.T, repos Repos) {
	env := NewEnvWith(repos)
	ctx := context.Background()

	t.Run("school names are unique, ignoring case", func(t *testing.T) {
		sch := env.CreateSchool(t)
		_, err := repos.Schools.CreateSchool(ctx, school.School{
			Name:      strings.ToUpper(sch.Name),
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		})
		assert.Equal(t, school.ErrNameExists, errors.Cause(err))

		taken, err := env.Schools.SchoolNameTaken(ctx, strings.ToLower(sch.Name))
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("users are unique by username", func(t *testing.T) {
		usr := env.CreateSuperAdmin(t)
		err := repos.Users.CheckUserUniqueness(ctx, usr.Username, "")
		assert.Equal(t, user.ErrUsernameExists, errors.Cause(err))
		assert.NoError(t, repos.Users.CheckUserUniqueness(ctx, usr.Username, "", usr.ID))

		got, err := env.Users.GetByUsername(ctx, usr.Username)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)
		assert.Equal(t, []string{user.RoleSuperAdmin}, got.Roles)
	})

	t.Run("criteria are ordered by position then name", func(t *testing.T) {
		sch := env.CreateSchool(t)
		fair := env.CreateFair(t, sch.ID)
		for _, nc := range []school.NewCriterion{
			{Name: "Rigor", Weight: 2, Position: 1},
			{Name: "clarity", Weight: 1, Position: 1},
			{Name: "Originality", Weight: 3, Position: 0},
		} {
			_, err := env.Schools.CreateCriterion(ctx, fair, nc)
			require.NoError(t, err)
		}
		_, err := env.Schools.CreateCriterion(ctx, fair, school.NewCriterion{Name: "RIGOR", Weight: 1})
		assert.True(t, isValidationError(err))

		crits, err := repos.Schools.QueryCriteria(ctx, sch.ID, fair.ID)
		require.NoError(t, err)
		var names []string
		for _, c := range crits {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"Originality", "clarity", "Rigor"}, names)
	})

	t.Run("projects are found by evaluator", func(t *testing.T) {
		sch := env.CreateSchool(t)
		fair := env.CreateFair(t, sch.ID)
		cat := env.CreateCategory(t, fair)
		p1 := env.CreateProject(t, fair, cat.ID)
		env.CreateProject(t, fair, cat.ID)
		e := env.CreateEvaluator(t, fair, p1.ID).Evaluator

		projects, err := env.Projects.Query(ctx, project.QueryFilter{EvaluatorID: e.ID})
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, p1.ID, projects[0].ID)
		assert.Equal(t, p1.Students, projects[0].Students)

		evaluators, err := repos.Evaluators.QueryEvaluators(ctx, evaluator.QueryFilter{ProjectID: p1.ID})
		require.NoError(t, err)
		require.Len(t, evaluators, 1)
		assert.Equal(t, e.ID, evaluators[0].ID)
	})

	t.Run("evaluators are listed by name, ignoring case", func(t *testing.T) {
		sch := env.CreateSchool(t)
		fair := env.CreateFair(t, sch.ID)
		for _, name := range []string{"bruno", "Carla", "Ana", "alberto"} {
			_, err := env.Evaluators.Create(ctx, fair, evaluator.NewEvaluator{Name: name})
			require.NoError(t, err)
		}

		evaluators, err := env.Evaluators.List(ctx, fair)
		require.NoError(t, err)
		var names []string
		for _, e := range evaluators {
			names = append(names, e.Name)
		}
		assert.Equal(t, []string{"alberto", "Ana", "bruno", "Carla"}, names)
	})

	t.Run("PINs are unique and authenticate", func(t *testing.T) {
		sch := env.CreateSchool(t)
		fair := env.CreateFair(t, sch.ID)
		created := env.CreateEvaluator(t, fair)

		dup := created.Evaluator
		dup.ID = ""
		_, err := repos.Evaluators.CreateEvaluator(ctx, dup)
		assert.Equal(t, evaluator.ErrPINExists, errors.Cause(err))

		e, err := env.Evaluators.Authenticate(ctx, created.PIN)
		require.NoError(t, err)
		assert.Equal(t, created.ID, e.ID)
		assert.NotNil(t, e.LastLogin)
	})

	t.Run("scores are upserted per evaluator and project", func(t *testing.T) {
		sch := env.CreateSchool(t)
		fair := env.CreateFair(t, sch.ID)
		c1 := env.CreateCriterion(t, fair, 1, 0)
		c2 := env.CreateCriterion(t, fair, 2, 1)
		p := env.CreateProject(t, fair, env.CreateCategory(t, fair).ID)
		e := env.CreateEvaluator(t, fair, p.ID).Evaluator

		_, err := env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID,
			evaluation.SubmitScores{Scores: map[string]evaluation.ScoreInput{c1.ID: Score(6)}})
		require.NoError(t, err)
		_, err = env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID,
			evaluation.SubmitScores{Scores: map[string]evaluation.ScoreInput{c2.ID: Score(9)}})
		require.NoError(t, err)

		evals, err := repos.Evaluations.QueryEvaluations(ctx, evaluation.QueryFilter{FairID: fair.ID})
		require.NoError(t, err)
		require.Len(t, evals, 1)
		assert.True(t, evals[0].HasAnyScore)
		assert.Equal(t, 2, evaluation.ScoredCount([]school.Criterion{c1, c2}, evals[0]))

		status, err := env.Evaluations.Status(ctx, e, p)
		require.NoError(t, err)
		assert.Equal(t, evaluation.StatusEvaluated, status.Label)
	})

	t.Run("finalize succeeds exactly once", func(t *testing.T) {
		sch := env.CreateSchool(t)
		fair := env.CreateFair(t, sch.ID)
		e := env.CreateEvaluator(t, fair).Evaluator

		var wg sync.WaitGroup
		var wins int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.Evaluations.FinalizeAll(ctx, e.Identity())
				if err == nil {
					atomic.AddInt32(&wins, 1)
				} else {
					assert.Equal(t, evaluator.ErrAlreadyFinalized, errors.Cause(err))
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)

		stored, err := env.Evaluators.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.True(t, stored.FinishedAll)
		assert.False(t, stored.Active)
		assert.NotNil(t, stored.FinishedAt)

		active := true
		_, err = repos.Evaluators.UpdateEvaluator(ctx, stored.ID, evaluator.Changes{Active: &active})
		assert.Equal(t, evaluator.ErrAlreadyFinalized, errors.Cause(err))
	})

	t.Run("updates only write the changed fields", func(t *testing.T) {
		sch := env.CreateSchool(t)
		fair := env.CreateFair(t, sch.ID)
		created := env.CreateEvaluator(t, fair)
		_, err := env.Evaluators.SetActive(ctx, created.Evaluator, false)
		require.NoError(t, err)

		// a login computed from the stale record must not revive it
		now := time.Now().UTC()
		e, err := repos.Evaluators.UpdateEvaluator(ctx, created.ID, evaluator.Changes{LastLogin: &now})
		require.NoError(t, err)
		assert.False(t, e.Active)
		assert.Equal(t, created.PINHash, e.PINHash)
		require.NotNil(t, e.LastLogin)

		stored, err := env.Evaluators.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, stored.Active)
	})

	t.Run("concurrent assignments keep every evaluator", func(t *testing.T) {
		sch := env.CreateSchool(t)
		fair := env.CreateFair(t, sch.ID)
		p := env.CreateProject(t, fair, env.CreateCategory(t, fair).ID)

		ids := make([]string, 6)
		var wg sync.WaitGroup
		for i := range ids {
			e := env.CreateEvaluator(t, fair).Evaluator
			ids[i] = e.ID
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.Evaluators.AssignProjects(ctx, fair, e, evaluator.AssignProjects{ProjectIDs: []string{p.ID}})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, err := env.Projects.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, ids, stored.EvaluatorIDs)

		require.NoError(t, env.Evaluators.UnassignProject(ctx, stored))
		evaluators, err := repos.Evaluators.QueryEvaluators(ctx, evaluator.QueryFilter{ProjectID: p.ID})
		require.NoError(t, err)
		assert.Empty(t, evaluators)
	})

	t.Run("access requests are reviewed once", func(t *testing.T) {
		r, err := env.Access.Submit(ctx, access.NewRequest{
			SchoolName:    unique(faker.Company()),
			ContactName:   faker.Name(),
			ContactEmail:  faker.Email(),
			AdminUsername: fmt.Sprintf("admin%d", atomic.AddUint64(&seq, 1)),
			Password:      Password,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, r.PasswordHash)

		pending, err := env.Access.List(ctx, access.QueryFilter{Status: access.StatusPending, SchoolName: r.SchoolName})
		require.NoError(t, err)
		require.Len(t, pending, 1)

		reviewer := env.CreateSuperAdmin(t)
		_, err = env.Access.Reject(ctx, r.ID, reviewer, access.Rejection{Reason: "incomplete"})
		require.NoError(t, err)

		r.Status = access.StatusApproved
		_, err = repos.Access.ReviewRequest(ctx, r)
		assert.Equal(t, access.ErrInvalidTransition, errors.Cause(err))

		got, err := env.Access.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, access.StatusRejected, got.Status)
		assert.Equal(t, "incomplete", got.Reason)
		assert.Equal(t, reviewer.Username, got.ReviewedBy)
	})
}

func isValidationError(err error) bool {
	_, ok := errors.Cause(err).(*core.ValidationError)
	return ok
}
