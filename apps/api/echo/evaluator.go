package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core/evaluator"
)

var errEvaluatorNotFoundInCtx = errors.New("evaluator object not found in echo.Context")

type evaluatorApi struct {
	svc      *evaluator.Service
	validate *validator.Validate
}

func registerEvaluatorAPI(g *echo.Group, opts *Options) {
	api := evaluatorApi{svc: opts.EvaluatorSvc, validate: opts.Validate}

	eg := g.Group("/evaluators")
	eg.GET("", api.query)
	eg.POST("", api.create)

	dg := eg.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.PUT("/projects", api.assignProjects)
	dg.POST("/pin", api.regeneratePIN)
	dg.PUT("/active", api.setActive)
}

// objectMiddleware loads the `:id` evaluator of the context fair.
func (api *evaluatorApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		fair, err := getContextFair(ctx)
		if err != nil {
			return err
		}
		e, err := api.svc.Get(ctx.Request().Context(), fair, ctx.Param("id"))
		if err != nil {
			return err
		}
		ctx.Set("object", e)
		return next(ctx)
	}
}

func getContextObject(ctx echo.Context) (evaluator.Evaluator, error) {
	if e, ok := ctx.Get("object").(evaluator.Evaluator); ok {
		return e, nil
	}
	return evaluator.Evaluator{}, errEvaluatorNotFoundInCtx
}

func (api *evaluatorApi) query(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	evaluators, err := api.svc.List(ctx.Request().Context(), fair)
	if err != nil {
		return errors.Wrap(err, "querying evaluators")
	}
	return ctx.JSON(http.StatusOK, evaluators)
}

// create responds with the evaluator's PIN; it is never shown again.
func (api *evaluatorApi) create(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	var data evaluator.NewEvaluator
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluator")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	created, err := api.svc.Create(ctx.Request().Context(), fair, data)
	if err != nil {
		return errors.Wrap(err, "creating evaluator")
	}
	return ctx.JSON(http.StatusCreated, created)
}

func (api *evaluatorApi) retrieve(ctx echo.Context) error {
	e, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *evaluatorApi) destroy(ctx echo.Context) error {
	e, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), e); err != nil {
		return errors.Wrap(err, "deleting evaluator")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *evaluatorApi) assignProjects(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	e, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	var data evaluator.AssignProjects
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignProjects")
	}
	e, err = api.svc.AssignProjects(ctx.Request().Context(), fair, e, data)
	if err != nil {
		return errors.Wrap(err, "assigning projects")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *evaluatorApi) regeneratePIN(ctx echo.Context) error {
	e, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	created, err := api.svc.RegeneratePIN(ctx.Request().Context(), e)
	if err != nil {
		return errors.Wrap(err, "regenerating PIN")
	}
	return ctx.JSON(http.StatusOK, created)
}

func (api *evaluatorApi) setActive(ctx echo.Context) error {
	e, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	var data SetActiveRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetActiveRequest")
	}
	e, err = api.svc.SetActive(ctx.Request().Context(), e, data.Active)
	if err != nil {
		return errors.Wrap(err, "setting evaluator active")
	}
	return ctx.JSON(http.StatusOK, e)
}
