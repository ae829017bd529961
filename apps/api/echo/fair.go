package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core/project"
	"github.com/trezcool/feira/core/school"
)

var errFairNotFoundInCtx = errors.New("fair object not found in echo.Context")

type fairApi struct {
	svc        *school.Service
	projectSvc *project.Service
	validate   *validator.Validate
}

func registerFairAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := fairApi{svc: opts.SchoolSvc, projectSvc: opts.ProjectSvc, validate: opts.Validate}

	fg := g.Group("/fairs", jwt, schoolAdminMiddleware(opts.UserSvc, opts.SchoolSvc))
	fg.GET("", api.query)
	fg.POST("", api.create)

	dg := fg.Group("/:fair", fairMiddleware(opts.SchoolSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)

	cg := dg.Group("/categories")
	cg.GET("", api.queryCategories)
	cg.POST("", api.createCategory)
	cg.PUT("/:id", api.updateCategory)
	cg.DELETE("/:id", api.destroyCategory)

	kg := dg.Group("/criteria")
	kg.GET("", api.queryCriteria)
	kg.POST("", api.createCriterion)
	kg.GET("/:id", api.retrieveCriterion)
	kg.PUT("/:id", api.updateCriterion)
	kg.DELETE("/:id", api.destroyCriterion)

	registerProjectAPI(dg, opts)
	registerEvaluatorAPI(dg, opts)
	registerResultsAPI(dg, opts)
}

func getContextSchool(ctx echo.Context) (school.School, error) {
	if sch, ok := ctx.Get(contextSchoolKey).(school.School); ok {
		return sch, nil
	}
	return school.School{}, errHttpForbidden
}

func getContextFair(ctx echo.Context) (school.Fair, error) {
	if fair, ok := ctx.Get(contextFairKey).(school.Fair); ok {
		return fair, nil
	}
	return school.Fair{}, errFairNotFoundInCtx
}

// Fairs

func (api *fairApi) query(ctx echo.Context) error {
	sch, err := getContextSchool(ctx)
	if err != nil {
		return err
	}
	fairs, err := api.svc.ListFairs(ctx.Request().Context(), sch.ID)
	if err != nil {
		return errors.Wrap(err, "querying fairs")
	}
	return ctx.JSON(http.StatusOK, fairs)
}

func (api *fairApi) create(ctx echo.Context) error {
	sch, err := getContextSchool(ctx)
	if err != nil {
		return err
	}
	var data school.NewFair
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFair")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	fair, err := api.svc.CreateFair(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating fair")
	}
	return ctx.JSON(http.StatusCreated, fair)
}

func (api *fairApi) retrieve(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fair)
}

func (api *fairApi) update(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	var data school.UpdateFair
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFair")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	fair, err = api.svc.UpdateFair(ctx.Request().Context(), fair, data)
	if err != nil {
		return errors.Wrap(err, "updating fair")
	}
	return ctx.JSON(http.StatusOK, fair)
}

// Categories

func (api *fairApi) queryCategories(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	cats, err := api.svc.ListCategories(ctx.Request().Context(), fair)
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *fairApi) createCategory(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	var data school.NewCategory
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	cat, err := api.svc.CreateCategory(ctx.Request().Context(), fair, data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *fairApi) updateCategory(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	cat, err := api.svc.GetCategory(ctx.Request().Context(), fair, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data school.NewCategory
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	cat, err = api.svc.UpdateCategory(ctx.Request().Context(), cat, data)
	if err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

// destroyCategory refuses to delete a category that still holds projects.
func (api *fairApi) destroyCategory(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	cat, err := api.svc.GetCategory(rctx, fair, ctx.Param("id"))
	if err != nil {
		return err
	}
	projects, err := api.projectSvc.Query(rctx, project.QueryFilter{SchoolID: fair.SchoolID, FairID: fair.ID, CategoryID: cat.ID})
	if err != nil {
		return errors.Wrap(err, "querying category projects")
	}
	if len(projects) > 0 {
		return school.ErrCategoryInUse
	}
	if err = api.svc.DeleteCategory(rctx, cat); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Criteria

func (api *fairApi) queryCriteria(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	crits, err := api.svc.ListCriteria(ctx.Request().Context(), fair.SchoolID, fair.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crits)
}

func (api *fairApi) createCriterion(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	var data school.NewCriterion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCriterion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	crit, err := api.svc.CreateCriterion(ctx.Request().Context(), fair, data)
	if err != nil {
		return errors.Wrap(err, "creating criterion")
	}
	return ctx.JSON(http.StatusCreated, crit)
}

func (api *fairApi) retrieveCriterion(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	crit, err := api.svc.GetCriterion(ctx.Request().Context(), fair, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crit)
}

func (api *fairApi) updateCriterion(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	crit, err := api.svc.GetCriterion(ctx.Request().Context(), fair, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data school.UpdateCriterion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCriterion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	crit, err = api.svc.UpdateCriterion(ctx.Request().Context(), crit, data)
	if err != nil {
		return errors.Wrap(err, "updating criterion")
	}
	return ctx.JSON(http.StatusOK, crit)
}

func (api *fairApi) destroyCriterion(ctx echo.Context) error {
	fair, err := getContextFair(ctx)
	if err != nil {
		return err
	}
	crit, err := api.svc.GetCriterion(ctx.Request().Context(), fair, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCriterion(ctx.Request().Context(), crit); err != nil {
		return errors.Wrap(err, "deleting criterion")
	}
	return ctx.NoContent(http.StatusNoContent)
}
