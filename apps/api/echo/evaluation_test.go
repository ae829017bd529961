package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core/evaluation"
	"github.com/trezcool/feira/core/evaluator"
)

func scoresBody(t *testing.T, scores map[string]interface{}) []byte {
	inputs := make(map[string]interface{}, len(scores))
	for critID, score := range scores {
		inputs[critID] = map[string]interface{}{"score": score}
	}
	return marshalObj(t, map[string]interface{}{"scores": inputs})
}

func Test_evaluationApi_flow(t *testing.T) {
	srv, env := newTestServer(t)
	fair := env.CreateFair(t, env.CreateSchool(t).ID)
	cat := env.CreateCategory(t, fair)
	c1 := env.CreateCriterion(t, fair, 2, 0)
	c2 := env.CreateCriterion(t, fair, 1, 1)
	p1 := env.CreateProject(t, fair, cat.ID, "Bridge")
	p2 := env.CreateProject(t, fair, cat.ID, "Compass")
	other := env.CreateProject(t, fair, cat.ID, "Not mine")
	e := env.CreateEvaluator(t, fair, p1.ID, p2.ID).Evaluator
	token := evaluatorToken(t, srv, e)

	projectPath := func(id string) string { return "/v1/me/projects/" + id }
	scoresPath := func(id string) string { return projectPath(id) + "/scores" }

	runHTTPTests(t, srv, []httpTest{
		{name: "no token", path: "/v1/me/projects", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "form of unassigned project", path: projectPath(other.ID), token: token, wantCode: http.StatusForbidden},
		{name: "scores of unassigned project", method: http.MethodPut, path: scoresPath(other.ID), token: token,
			body: scoresBody(t, map[string]interface{}{c1.ID: 7}), wantCode: http.StatusForbidden},
		{name: "score out of range", method: http.MethodPut, path: scoresPath(p1.ID), token: token,
			body: scoresBody(t, map[string]interface{}{c1.ID: 7, c2.ID: 4}), wantCode: http.StatusBadRequest,
			wantData: []byte(fmt.Sprintf(`{%q:"score must be an integer between 5 and 10"}`, c2.ID))},
		{name: "score not a number", method: http.MethodPut, path: scoresPath(p1.ID), token: token,
			body: scoresBody(t, map[string]interface{}{c1.ID: "high"}), wantCode: http.StatusBadRequest},
	})

	// nothing was stored by the rejected submissions
	rec := srv.do(http.MethodGet, projectPath(p1.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var form evaluation.Form
	decode(t, rec, &form)
	assert.Nil(t, form.Evaluation)
	assert.Equal(t, evaluation.StatusPending, form.Status.Label)
	require.Len(t, form.Criteria, 2)

	rec = srv.do(http.MethodPut, scoresPath(p1.ID), token, scoresBody(t, map[string]interface{}{c1.ID: 9, c2.ID: "8"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &form)
	assert.Equal(t, evaluation.Status{Label: evaluation.StatusEvaluated, IsComplete: true}, form.Status)

	rec = srv.do(http.MethodPut, scoresPath(p2.ID), token, scoresBody(t, map[string]interface{}{c1.ID: 6}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &form)
	assert.Equal(t, evaluation.StatusInProgress, form.Status.Label)

	rec = srv.do(http.MethodGet, "/v1/me/projects", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var overview []evaluation.ProjectStatus
	decode(t, rec, &overview)
	require.Len(t, overview, 2)
	assert.Equal(t, "Bridge", overview[0].Project.Title)
	assert.Equal(t, evaluation.StatusEvaluated, overview[0].Status.Label)
	assert.Equal(t, evaluation.StatusInProgress, overview[1].Status.Label)

	rec = srv.do(http.MethodPost, "/v1/me/finalize", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"some projects are not fully evaluated: Compass","projects":["Compass"]}`, rec.Body.String())

	rec = srv.do(http.MethodPut, scoresPath(p2.ID), token, scoresBody(t, map[string]interface{}{c2.ID: 10}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodPost, "/v1/me/finalize", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var finalized evaluator.Evaluator
	decode(t, rec, &finalized)
	assert.True(t, finalized.FinishedAll)
	assert.False(t, finalized.Active)

	// the session ends with the finalization
	runHTTPTests(t, srv, []httpTest{
		{name: "finalize again", method: http.MethodPost, path: "/v1/me/finalize", token: token, wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, echoErr{Error: "evaluation session ended"})},
		{name: "scores after finalize", method: http.MethodPut, path: scoresPath(p1.ID), token: token,
			body: scoresBody(t, map[string]interface{}{c1.ID: 5}), wantCode: http.StatusUnauthorized},
	})
}

func Test_evaluationApi_userTokenRefused(t *testing.T) {
	srv, env := newTestServer(t)
	admin := env.CreateSuperAdmin(t)

	rec := srv.do(http.MethodGet, "/v1/me/projects", userToken(t, srv, admin), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_evaluationApi_concurrentFinalize(t *testing.T) {
	srv, env := newTestServer(t)
	fair := env.CreateFair(t, env.CreateSchool(t).ID)
	crit := env.CreateCriterion(t, fair, 1, 0)
	p := env.CreateProject(t, fair, env.CreateCategory(t, fair).ID)
	e := env.CreateEvaluator(t, fair, p.ID).Evaluator
	token := evaluatorToken(t, srv, e)

	rec := srv.do(http.MethodPut, "/v1/me/projects/"+p.ID+"/scores", token, scoresBody(t, map[string]interface{}{crit.ID: 8}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	const callers = 6
	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = srv.do(http.MethodPost, "/v1/me/finalize", token, nil).Code
		}(i)
	}
	wg.Wait()

	var ok int
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusConflict, http.StatusUnauthorized: // lost the race
		default:
			t.Errorf("unexpected code %d", code)
		}
	}
	assert.Equal(t, 1, ok)
}

func Test_evaluationApi_results(t *testing.T) {
	ctx := context.Background()
	srv, env := newTestServer(t)
	sch := env.CreateSchool(t)
	admin := env.CreateSchoolAdmin(t, sch.ID)
	fair := env.CreateFair(t, sch.ID)
	crit := env.CreateCriterion(t, fair, 1, 0)
	p := env.CreateProject(t, fair, env.CreateCategory(t, fair).ID, "Robot")
	e := env.CreateEvaluator(t, fair, p.ID).Evaluator

	_, err := env.Evaluations.SubmitScores(ctx, e.Identity(), p.ID, evaluation.SubmitScores{
		Scores: map[string]evaluation.ScoreInput{crit.ID: {Score: "7"}},
	})
	require.NoError(t, err)

	rec := srv.do(http.MethodGet, "/v1/fairs/"+fair.ID+"/results", userToken(t, srv, admin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var results []evaluation.ProjectResult
	decode(t, rec, &results)
	require.Len(t, results, 1)
	assert.Equal(t, evaluation.ProjectResult{
		ProjectID: p.ID, Title: "Robot", CategoryID: p.CategoryID, Evaluators: 1, Completed: 1, Score: 7,
	}, results[0])

	// admins of other schools cannot see them
	otherAdmin := env.CreateSchoolAdmin(t, env.CreateSchool(t).ID)
	rec = srv.do(http.MethodGet, "/v1/fairs/"+fair.ID+"/results", userToken(t, srv, otherAdmin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

