package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/school"
	"github.com/trezcool/feira/core/user"
	"github.com/trezcool/feira/services/metrics"
)

const (
	contextSchoolKey = "school"
	contextFairKey   = "fair"
)

func superAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			if !usr.IsSuperAdmin() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// schoolAdminMiddleware lets the admins of an active school through, with their school set in the context.
func schoolAdminMiddleware(usrSvc *user.Service, schSvc *school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			if !usr.IsSchoolAdmin(usr.SchoolID) {
				return errHttpForbidden
			}
			sch, err := schSvc.GetSchool(ctx.Request().Context(), usr.SchoolID)
			if err != nil {
				return errors.Wrap(err, "getting user school")
			}
			if !sch.IsActive {
				return errAccountDeactivated
			}
			ctx.Set(contextSchoolKey, sch)
			return next(ctx)
		}
	}
}

// fairMiddleware loads the `:fair` of the context school.
func fairMiddleware(svc *school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, ok := ctx.Get(contextSchoolKey).(school.School)
			if !ok {
				return errHttpForbidden
			}
			fair, err := svc.GetFair(ctx.Request().Context(), sch.ID, ctx.Param("fair"))
			if err != nil {
				return err
			}
			ctx.Set(contextFairKey, fair)
			return next(ctx)
		}
	}
}

// evaluatorMiddleware reloads the evaluator behind the token on every request;
// a finalized, deactivated or deleted evaluator has its session ended.
func evaluatorMiddleware(evSvc *evaluator.Service, schSvc *school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsEvaluator() {
				return errHttpForbidden
			}

			rctx := ctx.Request().Context()
			e, err := evSvc.GetByID(rctx, claims.Subject)
			if err != nil {
				if errors.Cause(err) == evaluator.ErrNotFound {
					return errSessionEnded
				}
				return errors.Wrap(err, "getting context evaluator")
			}
			if !e.CanEvaluate() || e.Identity() != claims.Identity() {
				return errSessionEnded
			}
			sch, err := schSvc.GetSchool(rctx, e.SchoolID)
			if err != nil {
				return errors.Wrap(err, "getting evaluator school")
			}
			if !sch.IsActive {
				return errSessionEnded
			}
			ctx.Set(contextEvaluatorKey, e)
			return next(ctx)
		}
	}
}

func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)

		status := ctx.Response().Status
		if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
			status = herr.Code
		}
		metrics.APIRequestDuration.
			WithLabelValues(ctx.Path(), ctx.Request().Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
