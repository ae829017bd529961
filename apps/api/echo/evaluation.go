package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core/evaluation"
	"github.com/trezcool/feira/services/metrics"
)

type evaluationApi struct {
	svc *evaluation.Service
}

// registerEvaluationAPI registers the evaluator-facing endpoints.
func registerEvaluationAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := evaluationApi{svc: opts.EvaluationSvc}

	mg := g.Group("/me", jwt, evaluatorMiddleware(opts.EvaluatorSvc, opts.SchoolSvc))
	mg.GET("", api.me)
	mg.GET("/projects", api.overview)
	mg.GET("/projects/:id", api.form)
	mg.PUT("/projects/:id/scores", api.submitScores)
	mg.POST("/finalize", api.finalize)
}

func registerResultsAPI(g *echo.Group, opts *Options) {
	api := evaluationApi{svc: opts.EvaluationSvc}
	g.GET("/results", api.results)
}

func submissionResult(err error) string {
	switch errors.Cause(err).(type) {
	case nil:
		return metrics.ResultOK
	case *evaluation.InvalidScoreError, *evaluation.IncompleteProjectsError:
		return metrics.ResultRejected
	}
	switch errors.Cause(err) {
	case evaluation.ErrNotAuthorized, evaluation.ErrAlreadyFinalized:
		return metrics.ResultRejected
	}
	return metrics.ResultError
}

func (api *evaluationApi) me(ctx echo.Context) error {
	e, err := getContextEvaluator(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *evaluationApi) overview(ctx echo.Context) error {
	e, err := getContextEvaluator(ctx)
	if err != nil {
		return err
	}
	statuses, err := api.svc.Overview(ctx.Request().Context(), e.Identity())
	if err != nil {
		return errors.Wrap(err, "getting evaluator overview")
	}
	return ctx.JSON(http.StatusOK, statuses)
}

func (api *evaluationApi) form(ctx echo.Context) error {
	e, err := getContextEvaluator(ctx)
	if err != nil {
		return err
	}
	form, err := api.svc.Form(ctx.Request().Context(), e.Identity(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting evaluation form")
	}
	return ctx.JSON(http.StatusOK, form)
}

func (api *evaluationApi) submitScores(ctx echo.Context) (err error) {
	defer func() { metrics.ScoreSubmissionsTotal.WithLabelValues(submissionResult(err)).Inc() }()

	e, err := getContextEvaluator(ctx)
	if err != nil {
		return err
	}
	var data evaluation.SubmitScores
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitScores")
	}

	rctx := ctx.Request().Context()
	if _, err = api.svc.SubmitScores(rctx, e.Identity(), ctx.Param("id"), data); err != nil {
		return errors.Wrap(err, "submitting scores")
	}
	form, err := api.svc.Form(rctx, e.Identity(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting evaluation form")
	}
	return ctx.JSON(http.StatusOK, form)
}

func (api *evaluationApi) finalize(ctx echo.Context) (err error) {
	defer func() { metrics.FinalizationsTotal.WithLabelValues(submissionResult(err)).Inc() }()

	e, err := getContextEvaluator(ctx)
	if err != nil {
		return err
	}
	e, err = api.svc.FinalizeAll(ctx.Request().Context(), e.Identity())
	if err != nil {
		return errors.Wrap(err, "finalizing evaluations")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *evaluationApi) results(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	results, err := api.svc.Results(ctx.Request().Context(), fair)
	if err != nil {
		return errors.Wrap(err, "computing results")
	}
	return ctx.JSON(http.StatusOK, results)
}
