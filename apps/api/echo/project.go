package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/project"
)

type projectApi struct {
	svc          *project.Service
	evaluatorSvc *evaluator.Service
	validate     *validator.Validate
}

func registerProjectAPI(g *echo.Group, opts *Options) {
	api := projectApi{svc: opts.ProjectSvc, evaluatorSvc: opts.EvaluatorSvc, validate: opts.Validate}

	pg := g.Group("/projects")
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
}

func (api *projectApi) query(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	filter := project.QueryFilter{SchoolID: fair.SchoolID, FairID: fair.ID, CategoryID: ctx.QueryParam("category")}
	projects, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) create(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	var data project.NewProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), fair, data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), fair, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) update(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), fair, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data project.UpdateProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	p, err = api.svc.Update(ctx.Request().Context(), fair, p, data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

// destroy unassigns the project from its evaluators before deleting it.
func (api *projectApi) destroy(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	p, err := api.svc.Get(rctx, fair, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = api.evaluatorSvc.UnassignProject(rctx, p); err != nil {
		return errors.Wrap(err, "unassigning project")
	}
	if err = api.svc.Delete(rctx, p); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}
