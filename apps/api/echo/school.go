package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core/school"
)

type schoolApi struct {
	svc *school.Service
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := schoolApi{svc: opts.SchoolSvc}

	sg := g.Group("/schools", jwt, superAdminMiddleware(opts.UserSvc))
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id/active", api.setActive)
}

func (api *schoolApi) query(ctx echo.Context) error {
	schools, err := api.svc.ListSchools(ctx.Request().Context(), school.QueryFilter{Name: ctx.QueryParam("name")})
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	sch, err := api.svc.GetSchool(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) setActive(ctx echo.Context) error {
	var data SetActiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetActiveRequest")
	}
	sch, err := api.svc.SetSchoolActive(ctx.Request().Context(), ctx.Param("id"), data.Active)
	if err != nil {
		return errors.Wrap(err, "setting school active")
	}
	return ctx.JSON(http.StatusOK, sch)
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}
