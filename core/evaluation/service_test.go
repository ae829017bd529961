package evaluation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/evaluation"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/school"
	testutil "github.com/trezcool/feira/tests"
)

type fixture struct {
	env      *testutil.Env
	fair     school.Fair
	category school.Category
	criteria []school.Criterion
}

func setup(t *testing.T, weights ...int) fixture {
	env := testutil.NewEnv()
	sch := env.CreateSchool(t)
	fair := env.CreateFair(t, sch.ID)
	fx := fixture{env: env, fair: fair, category: env.CreateCategory(t, fair)}
	for i, w := range weights {
		fx.criteria = append(fx.criteria, env.CreateCriterion(t, fair, w, i))
	}
	return fx
}

func (fx fixture) scores(values ...int) evaluation.SubmitScores {
	data := evaluation.SubmitScores{Scores: make(map[string]evaluation.ScoreInput)}
	for i, v := range values {
		data.Scores[fx.criteria[i].ID] = testutil.Score(v)
	}
	return data
}

func (fx fixture) status(t *testing.T, e evaluator.Evaluator, projectID string) evaluation.Status {
	form, err := fx.env.Evaluations.Form(context.Background(), e.Identity(), projectID)
	require.NoError(t, err)
	return form.Status
}

func TestComputeStatus(t *testing.T) {
	crits := []school.Criterion{{ID: "c1", Weight: 1}, {ID: "c2", Weight: 1}}
	score := func(n int) *int { return &n }

	tests := []struct {
		name     string
		criteria []school.Criterion
		ev       *evaluation.Evaluation
		want     evaluation.Status
	}{
		{name: "no evaluation", criteria: crits, want: evaluation.Status{Label: evaluation.StatusPending}},
		{name: "no criteria, no evaluation", want: evaluation.Status{Label: evaluation.StatusPending}},
		{
			name: "no criteria, evaluation exists",
			ev:   &evaluation.Evaluation{},
			want: evaluation.Status{Label: evaluation.StatusEvaluated, IsComplete: true},
		},
		{
			name:     "comments only",
			criteria: crits,
			ev:       &evaluation.Evaluation{Items: []evaluation.ScoreItem{{CriterionID: "c1", Comment: "nice"}}},
			want:     evaluation.Status{Label: evaluation.StatusPending},
		},
		{
			name:     "partially scored",
			criteria: crits,
			ev:       &evaluation.Evaluation{Items: []evaluation.ScoreItem{{CriterionID: "c1", Score: score(7)}}},
			want:     evaluation.Status{Label: evaluation.StatusInProgress},
		},
		{
			name:     "fully scored",
			criteria: crits,
			ev: &evaluation.Evaluation{Items: []evaluation.ScoreItem{
				{CriterionID: "c2", Score: score(10)},
				{CriterionID: "c1", Score: score(5)},
			}},
			want: evaluation.Status{Label: evaluation.StatusEvaluated, IsComplete: true},
		},
		{
			name:     "out of range score is not counted",
			criteria: crits,
			ev: &evaluation.Evaluation{Items: []evaluation.ScoreItem{
				{CriterionID: "c1", Score: score(7)},
				{CriterionID: "c2", Score: score(11)},
			}},
			want: evaluation.Status{Label: evaluation.StatusInProgress},
		},
		{
			name:     "items of removed criteria are ignored",
			criteria: crits[:1],
			ev: &evaluation.Evaluation{Items: []evaluation.ScoreItem{
				{CriterionID: "c1", Score: score(7)},
				{CriterionID: "gone", Score: score(8)},
			}},
			want: evaluation.Status{Label: evaluation.StatusEvaluated, IsComplete: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluation.ComputeStatus(tt.criteria, tt.ev))
		})
	}
}

func TestScoreValue_Parse(t *testing.T) {
	tests := []struct {
		in     evaluation.ScoreValue
		want   int
		wantOk bool
	}{
		{in: "5", want: 5, wantOk: true},
		{in: " 10 ", want: 10, wantOk: true},
		{in: "4"},
		{in: "11"},
		{in: "7.5"},
		{in: "seven"},
		{in: ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, ok := tt.in.Parse()
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// an evaluator with one project and three criteria gets partial, then complete, scores
func TestService_SubmitScores_progress(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 1, 2, 3)
	p := fx.env.CreateProject(t, fx.fair, fx.category.ID)
	e := fx.env.CreateEvaluator(t, fx.fair, p.ID).Evaluator

	assert.Equal(t, evaluation.StatusPending, fx.status(t, e, p.ID).Label)

	ev, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, fx.scores(7, 6))
	require.NoError(t, err)
	assert.True(t, ev.HasAnyScore)
	assert.Len(t, ev.Items, 2)
	assert.Equal(t, evaluation.StatusInProgress, fx.status(t, e, p.ID).Label)

	data := evaluation.SubmitScores{Scores: map[string]evaluation.ScoreInput{fx.criteria[2].ID: testutil.Score(8)}}
	ev2, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, data)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, ev2.ID, "one evaluation per (evaluator, project)")
	assert.Len(t, ev2.Items, 3)
	assert.Equal(t, evaluation.Status{Label: evaluation.StatusEvaluated, IsComplete: true}, fx.status(t, e, p.ID))

	// status is a pure read
	evals, err := fx.env.EvaluationRepo.QueryEvaluations(ctx, evaluation.QueryFilter{EvaluatorID: e.ID})
	require.NoError(t, err)
	assert.Len(t, evals, 1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, evaluation.StatusEvaluated, fx.status(t, e, p.ID).Label)
	}
}

func TestService_SubmitScores_invalid(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 1, 1)
	p := fx.env.CreateProject(t, fx.fair, fx.category.ID)
	e := fx.env.CreateEvaluator(t, fx.fair, p.ID).Evaluator

	tests := []struct {
		name  string
		score evaluation.ScoreValue
	}{
		{name: "below range", score: "4"},
		{name: "above range", score: "11"},
		{name: "not a number", score: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := evaluation.SubmitScores{Scores: map[string]evaluation.ScoreInput{
				fx.criteria[0].ID: testutil.Score(8),
				fx.criteria[1].ID: {Score: tt.score},
			}}
			_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, data)

			var scoreErr *evaluation.InvalidScoreError
			require.True(t, errors.As(err, &scoreErr), "got %v", err)
			require.Len(t, scoreErr.Criteria, 1)
			assert.Equal(t, fx.criteria[1].ID, scoreErr.Criteria[0].ID)

			// nothing persisted, not even the valid score
			_, err = fx.env.EvaluationRepo.GetEvaluation(ctx, e.ID, p.ID)
			assert.Equal(t, evaluation.ErrNotFound, errors.Cause(err))
		})
	}
}

func TestService_SubmitScores_severalInvalid(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 1, 2, 3)
	p := fx.env.CreateProject(t, fx.fair, fx.category.ID)
	e := fx.env.CreateEvaluator(t, fx.fair, p.ID).Evaluator

	data := evaluation.SubmitScores{Scores: map[string]evaluation.ScoreInput{
		fx.criteria[2].ID: {Score: "abc"},
		fx.criteria[1].ID: testutil.Score(7),
		fx.criteria[0].ID: {Score: "4"},
	}}
	_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, data)

	var scoreErr *evaluation.InvalidScoreError
	require.True(t, errors.As(err, &scoreErr), "got %v", err)
	require.Len(t, scoreErr.Criteria, 2)
	assert.Equal(t, fx.criteria[0].ID, scoreErr.Criteria[0].ID)
	assert.Equal(t, fx.criteria[2].ID, scoreErr.Criteria[1].ID)
	assert.Contains(t, scoreErr.Error(), fx.criteria[0].Name+", "+fx.criteria[2].Name)

	verr, ok := scoreErr.ValidationError().(*core.ValidationError)
	require.True(t, ok)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, fx.criteria[0].ID, verr.Fields[0].Field)
	assert.Equal(t, fx.criteria[2].ID, verr.Fields[1].Field)
}

func TestService_SubmitScores_merge(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 1, 1)
	p := fx.env.CreateProject(t, fx.fair, fx.category.ID)
	e := fx.env.CreateEvaluator(t, fx.fair, p.ID).Evaluator
	c1, c2 := fx.criteria[0].ID, fx.criteria[1].ID

	_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, evaluation.SubmitScores{
		Scores: map[string]evaluation.ScoreInput{c1: {Score: "9", Comment: "  great  "}},
	})
	require.NoError(t, err)

	// a lone comment keeps the prior score; unknown criteria are ignored
	ev, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, evaluation.SubmitScores{
		Scores: map[string]evaluation.ScoreInput{
			c1:        {Comment: "still great"},
			c2:        {Comment: "to review"},
			"unknown": {Score: "2"},
		},
	})
	require.NoError(t, err)
	require.Len(t, ev.Items, 2)

	item, ok := ev.Item(c1)
	require.True(t, ok)
	require.NotNil(t, item.Score)
	assert.Equal(t, 9, *item.Score)
	assert.Equal(t, "still great", item.Comment)

	item, ok = ev.Item(c2)
	require.True(t, ok)
	assert.Nil(t, item.Score)
	assert.Equal(t, "to review", item.Comment)
	assert.Equal(t, evaluation.StatusInProgress, fx.status(t, e, p.ID).Label)
}

func TestService_SubmitScores_notAuthorized(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 1)
	assigned := fx.env.CreateProject(t, fx.fair, fx.category.ID)
	other := fx.env.CreateProject(t, fx.fair, fx.category.ID)
	e := fx.env.CreateEvaluator(t, fx.fair, assigned.ID).Evaluator

	_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), other.ID, fx.scores(7))
	assert.Equal(t, evaluation.ErrNotAuthorized, errors.Cause(err))

	// an identity from another fair is refused
	otherFair := fx.env.CreateFair(t, fx.fair.SchoolID)
	id := e.Identity()
	id.FairID = otherFair.ID
	_, err = fx.env.Evaluations.SubmitScores(ctx, id, assigned.ID, fx.scores(7))
	assert.Equal(t, evaluation.ErrNotAuthorized, errors.Cause(err))

	_, err = fx.env.Evaluations.Form(ctx, e.Identity(), other.ID)
	assert.Equal(t, evaluation.ErrNotAuthorized, errors.Cause(err))
}

// one project fully scored and one not: finalize is refused and the evaluator stays active
func TestService_FinalizeAll_incomplete(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 1, 1)
	done := fx.env.CreateProject(t, fx.fair, fx.category.ID, "Solar oven")
	todo := fx.env.CreateProject(t, fx.fair, fx.category.ID, "Water filter")
	e := fx.env.CreateEvaluator(t, fx.fair, done.ID, todo.ID).Evaluator

	_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), done.ID, fx.scores(8, 9))
	require.NoError(t, err)
	_, err = fx.env.Evaluations.SubmitScores(ctx, e.Identity(), todo.ID, fx.scores(8))
	require.NoError(t, err)

	_, err = fx.env.Evaluations.FinalizeAll(ctx, e.Identity())
	var incomplete *evaluation.IncompleteProjectsError
	require.True(t, errors.As(err, &incomplete), "got %v", err)
	assert.Equal(t, []string{"Water filter"}, incomplete.Titles)

	e, err = fx.env.Evaluators.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, e.Active)
	assert.False(t, e.FinishedAll)
}

// no criteria and no scores: the project stays pending, so finalize is blocked
func TestService_FinalizeAll_zeroCriteria(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	p := fx.env.CreateProject(t, fx.fair, fx.category.ID, "Volcano")
	e := fx.env.CreateEvaluator(t, fx.fair, p.ID).Evaluator

	assert.Equal(t, evaluation.StatusPending, fx.status(t, e, p.ID).Label)

	_, err := fx.env.Evaluations.FinalizeAll(ctx, e.Identity())
	var incomplete *evaluation.IncompleteProjectsError
	require.True(t, errors.As(err, &incomplete), "got %v", err)
	assert.Equal(t, []string{"Volcano"}, incomplete.Titles)
}

func TestService_FinalizeAll_noProjects(t *testing.T) {
	fx := setup(t, 1)
	e := fx.env.CreateEvaluator(t, fx.fair).Evaluator

	finalized, err := fx.env.Evaluations.FinalizeAll(context.Background(), e.Identity())
	require.NoError(t, err)
	assert.True(t, finalized.FinishedAll)
	assert.False(t, finalized.Active)
}

func TestService_FinalizeAll_locks(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 2, 1)
	p := fx.env.CreateProject(t, fx.fair, fx.category.ID)
	created := fx.env.CreateEvaluator(t, fx.fair, p.ID)
	e := created.Evaluator

	_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, fx.scores(10, 7))
	require.NoError(t, err)

	finalized, err := fx.env.Evaluations.FinalizeAll(ctx, e.Identity())
	require.NoError(t, err)
	assert.True(t, finalized.FinishedAll)
	assert.False(t, finalized.Active)
	require.NotNil(t, finalized.FinishedAt)

	_, err = fx.env.Evaluations.FinalizeAll(ctx, e.Identity())
	assert.Equal(t, evaluation.ErrAlreadyFinalized, errors.Cause(err))

	_, err = fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, fx.scores(5, 5))
	assert.Equal(t, evaluation.ErrAlreadyFinalized, errors.Cause(err))

	_, err = fx.env.Evaluators.Authenticate(ctx, created.PIN)
	assert.Equal(t, evaluator.ErrAccountDeactivated, errors.Cause(err))

	_, err = fx.env.Evaluators.SetActive(ctx, finalized, true)
	assert.Equal(t, evaluator.ErrAlreadyFinalized, errors.Cause(err))

	// scores are kept as they were at finalize time
	form, err := fx.env.Evaluations.Form(ctx, e.Identity(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, form.Evaluation)
	item, _ := form.Evaluation.Item(fx.criteria[0].ID)
	assert.Equal(t, 10, *item.Score)
}

func TestService_FinalizeAll_concurrent(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 1)
	p := fx.env.CreateProject(t, fx.fair, fx.category.ID)
	e := fx.env.CreateEvaluator(t, fx.fair, p.ID).Evaluator

	_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, fx.scores(6))
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = fx.env.Evaluations.FinalizeAll(ctx, e.Identity())
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, evaluation.ErrAlreadyFinalized, errors.Cause(err))
	}
	assert.Equal(t, 1, succeeded)
}

func TestService_Results(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 3, 1)
	best := fx.env.CreateProject(t, fx.fair, fx.category.ID, "Best")
	other := fx.env.CreateProject(t, fx.fair, fx.category.ID, "Other")
	unscored := fx.env.CreateProject(t, fx.fair, fx.category.ID, "Unscored")
	e1 := fx.env.CreateEvaluator(t, fx.fair, best.ID, other.ID).Evaluator
	e2 := fx.env.CreateEvaluator(t, fx.fair, best.ID, unscored.ID).Evaluator

	submit := func(e evaluator.Evaluator, projectID string, scores ...int) {
		_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), projectID, fx.scores(scores...))
		require.NoError(t, err)
	}
	submit(e1, best.ID, 10, 6)  // (30+6)/4 = 9
	submit(e2, best.ID, 8, 8)   // 8
	submit(e1, other.ID, 6, 10) // (18+10)/4 = 7
	submit(e2, unscored.ID, 9)  // incomplete

	results, err := fx.env.Evaluations.Results(ctx, fx.fair)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, evaluation.ProjectResult{
		ProjectID: best.ID, Title: "Best", CategoryID: fx.category.ID, Evaluators: 2, Completed: 2, Score: 8.5,
	}, results[0])
	assert.Equal(t, evaluation.ProjectResult{
		ProjectID: other.ID, Title: "Other", CategoryID: fx.category.ID, Evaluators: 1, Completed: 1, Score: 7,
	}, results[1])
	assert.Equal(t, evaluation.ProjectResult{
		ProjectID: unscored.ID, Title: "Unscored", CategoryID: fx.category.ID, Evaluators: 1,
	}, results[2])
}

func TestService_Overview(t *testing.T) {
	ctx := context.Background()
	fx := setup(t, 1)
	pb := fx.env.CreateProject(t, fx.fair, fx.category.ID, "b project")
	pa := fx.env.CreateProject(t, fx.fair, fx.category.ID, "A project")
	e := fx.env.CreateEvaluator(t, fx.fair, pb.ID, pa.ID).Evaluator

	_, err := fx.env.Evaluations.SubmitScores(ctx, e.Identity(), pb.ID, fx.scores(5))
	require.NoError(t, err)

	overview, err := fx.env.Evaluations.Overview(ctx, e.Identity())
	require.NoError(t, err)
	require.Len(t, overview, 2)
	assert.Equal(t, pa.ID, overview[0].Project.ID)
	assert.Equal(t, evaluation.StatusPending, overview[0].Status.Label)
	assert.Equal(t, pb.ID, overview[1].Project.ID)
	assert.Equal(t, evaluation.StatusEvaluated, overview[1].Status.Label)
}
