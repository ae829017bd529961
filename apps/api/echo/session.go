package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/school"
	"github.com/trezcool/feira/core/user"
	"github.com/trezcool/feira/services/metrics"
)

type sessionApi struct {
	auth         *authenticator
	usrSvc       *user.Service
	schSvc       *school.Service
	evaluatorSvc *evaluator.Service
	validate     *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, limiter *ipRateLimiter, auth *authenticator, opts *Options) {
	api := sessionApi{
		auth:         auth,
		usrSvc:       opts.UserSvc,
		schSvc:       opts.SchoolSvc,
		evaluatorSvc: opts.EvaluatorSvc,
		validate:     opts.Validate,
	}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/pin", api.pinLogin, limiter.middleware)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

// schoolIsActive reports whether school `id` may still be used; users without school always may.
func (api *sessionApi) schoolIsActive(ctx echo.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	sch, err := api.schSvc.GetSchool(ctx.Request().Context(), id)
	if err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "getting school")
	}
	return sch.IsActive, nil
}

func loginResult(err error) string {
	switch errors.Cause(err) {
	case nil:
		return metrics.ResultOK
	case user.ErrAuthenticationFailed, user.ErrAccountDeactivated,
		evaluator.ErrAuthenticationFailed, evaluator.ErrAccountDeactivated, errAccountDeactivated:
		return metrics.ResultRejected
	}
	return metrics.ResultError
}

func (api *sessionApi) login(ctx echo.Context) (err error) {
	defer func() { metrics.LoginsTotal.WithLabelValues(kindUser, loginResult(err)).Inc() }()

	var data LoginRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.usrSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	active, err := api.schoolIsActive(ctx, usr.SchoolID)
	if err != nil {
		return err
	}
	if !active {
		return errAccountDeactivated
	}

	token, err := api.auth.GenerateToken(api.auth.UserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *sessionApi) pinLogin(ctx echo.Context) (err error) {
	defer func() { metrics.LoginsTotal.WithLabelValues(kindEvaluator, loginResult(err)).Inc() }()

	var data PINLoginRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PINLoginRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.evaluatorSvc.Authenticate(ctx.Request().Context(), data.PIN)
	if err != nil {
		return errors.Wrap(err, "authenticating evaluator")
	}
	active, err := api.schoolIsActive(ctx, e.SchoolID)
	if err != nil {
		return err
	}
	if !active {
		return errAccountDeactivated
	}

	token, err := api.auth.GenerateToken(api.auth.EvaluatorClaims(e))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, PINLoginResponse{Token: token, Evaluator: e})
}

func (api *sessionApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PINLoginRequest struct {
		PIN string `json:"pin" validate:"required,pin"`
	}

	PINLoginResponse struct {
		Token     string              `json:"token"`
		Evaluator evaluator.Evaluator `json:"evaluator"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PINLoginRequest) Validate(validate *validator.Validate) error {
	pr.PIN = core.CleanString(pr.PIN)
	return validate.Struct(pr)
}
