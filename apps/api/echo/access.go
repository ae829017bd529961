package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/access"
	"github.com/trezcool/feira/core/user"
	"github.com/trezcool/feira/services/metrics"
)

type accessApi struct {
	svc      *access.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerAccessAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := accessApi{svc: opts.AccessSvc, usrSvc: opts.UserSvc, validate: opts.Validate}

	ag := g.Group("/access-requests")
	sg := ag.Group("", jwt, superAdminMiddleware(opts.UserSvc))
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/approve", api.approve)
	sg.POST("/:id/reject", api.reject)

	// registered after the guarded group, whose catch-all routes would shadow it
	ag.POST("", api.submit)
}

func (api *accessApi) submit(ctx echo.Context) error {
	var data access.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting access request")
	}
	metrics.AccessRequestsTotal.WithLabelValues(access.StatusPending).Inc()
	return ctx.JSON(http.StatusCreated, r)
}

func (api *accessApi) query(ctx echo.Context) error {
	filter := access.QueryFilter{Status: core.CleanString(ctx.QueryParam("status"), true /* lower */)}
	reqs, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying access requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *accessApi) retrieve(ctx echo.Context) error {
	r, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *accessApi) approve(ctx echo.Context) error {
	reviewer, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), reviewer)
	if err != nil {
		return errors.Wrap(err, "approving access request")
	}
	metrics.AccessRequestsTotal.WithLabelValues(access.StatusApproved).Inc()
	return ctx.JSON(http.StatusOK, r)
}

func (api *accessApi) reject(ctx echo.Context) error {
	var data access.Rejection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Rejection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	reviewer, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), reviewer, data)
	if err != nil {
		return errors.Wrap(err, "rejecting access request")
	}
	metrics.AccessRequestsTotal.WithLabelValues(access.StatusRejected).Inc()
	return ctx.JSON(http.StatusOK, r)
}
