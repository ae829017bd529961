package evaluator_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/project"
	testutil "github.com/trezcool/feira/tests"
)

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	sch := env.CreateSchool(t)
	fair := env.CreateFair(t, sch.ID)
	cat := env.CreateCategory(t, fair)
	p := env.CreateProject(t, fair, cat.ID)

	created := env.CreateEvaluator(t, fair, p.ID)
	assert.True(t, evaluator.ValidPIN(created.PIN))
	assert.True(t, created.Active)
	assert.False(t, created.FinishedAll)
	assert.Equal(t, []string{p.ID}, created.ProjectIDs)
	assert.NotContains(t, created.PINHash, created.PIN)

	p, err := env.Projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, p.EvaluatorIDs)

	t.Run("projects of another fair", func(t *testing.T) {
		otherFair := env.CreateFair(t, sch.ID)
		_, err := env.Evaluators.Create(ctx, otherFair, evaluator.NewEvaluator{Name: "Jo", ProjectIDs: []string{p.ID}})
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "project_ids", verr.Fields[0].Field)
	})

	t.Run("get from another fair", func(t *testing.T) {
		otherFair := env.CreateFair(t, sch.ID)
		_, err := env.Evaluators.Get(ctx, otherFair, created.ID)
		assert.Equal(t, evaluator.ErrNotFound, errors.Cause(err))
	})
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	fair := env.CreateFair(t, env.CreateSchool(t).ID)
	created := env.CreateEvaluator(t, fair)

	inactive := env.CreateEvaluator(t, fair)
	_, err := env.Evaluators.SetActive(ctx, inactive.Evaluator, false)
	require.NoError(t, err)

	wrongPIN := "000000"
	if wrongPIN == created.PIN || wrongPIN == inactive.PIN {
		wrongPIN = "999999"
	}

	tests := []struct {
		name    string
		pin     string
		wantErr error
	}{
		{name: "malformed", pin: "12ab", wantErr: evaluator.ErrAuthenticationFailed},
		{name: "unknown", pin: wrongPIN, wantErr: evaluator.ErrAuthenticationFailed},
		{name: "inactive", pin: inactive.PIN, wantErr: evaluator.ErrAccountDeactivated},
		{name: "ok", pin: created.PIN},
		{name: "ok with spaces", pin: " " + created.PIN + " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := env.Evaluators.Authenticate(ctx, tt.pin)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created.ID, e.ID)
			assert.NotNil(t, e.LastLogin)
		})
	}
}

// loginRace runs `during` once, between the PIN lookup of a login and its write.
type loginRace struct {
	evaluator.Repository
	during func()
}

func (r *loginRace) GetEvaluator(ctx context.Context, filter evaluator.GetFilter) (evaluator.Evaluator, error) {
	e, err := r.Repository.GetEvaluator(ctx, filter)
	if filter.PINHash != "" && r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return e, err
}

func TestService_Authenticate_concurrentAdminChanges(t *testing.T) {
	ctx := context.Background()
	repos := testutil.InMemRepos()
	race := &loginRace{Repository: repos.Evaluators}
	repos.Evaluators = race
	env := testutil.NewEnvWith(repos)
	fair := env.CreateFair(t, env.CreateSchool(t).ID)

	t.Run("deactivated during login", func(t *testing.T) {
		created := env.CreateEvaluator(t, fair)
		race.during = func() {
			_, err := env.Evaluators.SetActive(ctx, created.Evaluator, false)
			require.NoError(t, err)
		}

		_, err := env.Evaluators.Authenticate(ctx, created.PIN)
		assert.Equal(t, evaluator.ErrAccountDeactivated, errors.Cause(err))

		stored, err := env.Evaluators.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, stored.Active)
	})

	t.Run("PIN regenerated during login", func(t *testing.T) {
		created := env.CreateEvaluator(t, fair)
		var regenerated evaluator.Created
		race.during = func() {
			var err error
			regenerated, err = env.Evaluators.RegeneratePIN(ctx, created.Evaluator)
			require.NoError(t, err)
		}

		_, err := env.Evaluators.Authenticate(ctx, created.PIN)
		if regenerated.PIN != created.PIN {
			assert.Equal(t, evaluator.ErrAuthenticationFailed, errors.Cause(err))
		}

		stored, err := env.Evaluators.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, regenerated.PINHash, stored.PINHash)
		e, err := env.Evaluators.Authenticate(ctx, regenerated.PIN)
		require.NoError(t, err)
		assert.Equal(t, created.ID, e.ID)
	})

	t.Run("projects assigned during login", func(t *testing.T) {
		p := env.CreateProject(t, fair, env.CreateCategory(t, fair).ID)
		created := env.CreateEvaluator(t, fair)
		race.during = func() {
			_, err := env.Evaluators.AssignProjects(ctx, fair, created.Evaluator, evaluator.AssignProjects{ProjectIDs: []string{p.ID}})
			require.NoError(t, err)
		}

		e, err := env.Evaluators.Authenticate(ctx, created.PIN)
		require.NoError(t, err)
		assert.Equal(t, []string{p.ID}, e.ProjectIDs)
		assert.NotNil(t, e.LastLogin)
	})
}

func TestService_RegeneratePIN(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	fair := env.CreateFair(t, env.CreateSchool(t).ID)
	created := env.CreateEvaluator(t, fair)

	regenerated, err := env.Evaluators.RegeneratePIN(ctx, created.Evaluator)
	require.NoError(t, err)
	assert.Equal(t, created.ID, regenerated.ID)
	assert.True(t, evaluator.ValidPIN(regenerated.PIN))

	if regenerated.PIN != created.PIN {
		_, err = env.Evaluators.Authenticate(ctx, created.PIN)
		assert.Equal(t, evaluator.ErrAuthenticationFailed, errors.Cause(err))
	}
	e, err := env.Evaluators.Authenticate(ctx, regenerated.PIN)
	require.NoError(t, err)
	assert.Equal(t, created.ID, e.ID)
}

func TestService_AssignProjects(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	fair := env.CreateFair(t, env.CreateSchool(t).ID)
	cat := env.CreateCategory(t, fair)
	p1 := env.CreateProject(t, fair, cat.ID)
	p2 := env.CreateProject(t, fair, cat.ID)
	p3 := env.CreateProject(t, fair, cat.ID)
	e := env.CreateEvaluator(t, fair, p1.ID, p2.ID).Evaluator

	e, err := env.Evaluators.AssignProjects(ctx, fair, e, evaluator.AssignProjects{ProjectIDs: []string{p2.ID, p3.ID, p3.ID}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p2.ID, p3.ID}, e.ProjectIDs)

	assigned, err := env.Projects.Query(ctx, project.QueryFilter{EvaluatorID: e.ID})
	require.NoError(t, err)
	ids := make([]string, 0, len(assigned))
	for _, p := range assigned {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{p2.ID, p3.ID}, ids)

	// deleting the evaluator frees its projects
	require.NoError(t, env.Evaluators.Delete(ctx, e))
	assigned, err = env.Projects.Query(ctx, project.QueryFilter{EvaluatorID: e.ID})
	require.NoError(t, err)
	assert.Empty(t, assigned)
}

func TestService_Finalize(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	fair := env.CreateFair(t, env.CreateSchool(t).ID)
	e := env.CreateEvaluator(t, fair).Evaluator

	finalized, err := env.Evaluators.Finalize(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, finalized.FinishedAll)
	assert.False(t, finalized.Active)

	_, err = env.Evaluators.Finalize(ctx, e.ID)
	assert.Equal(t, evaluator.ErrAlreadyFinalized, errors.Cause(err))

	_, err = env.Evaluators.RegeneratePIN(ctx, finalized)
	assert.Equal(t, evaluator.ErrAlreadyFinalized, errors.Cause(err))

	_, err = env.Evaluators.AssignProjects(ctx, fair, finalized, evaluator.AssignProjects{})
	assert.Equal(t, evaluator.ErrAlreadyFinalized, errors.Cause(err))

	// a stale copy cannot revive it either
	_, err = env.Evaluators.SetActive(ctx, e, true)
	assert.Equal(t, evaluator.ErrAlreadyFinalized, errors.Cause(err))
}
