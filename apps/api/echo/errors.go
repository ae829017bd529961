package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/access"
	"github.com/trezcool/feira/core/evaluation"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/school"
	"github.com/trezcool/feira/core/user"
	logsvc "github.com/trezcool/feira/services/logger"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errSessionEnded         = echo.NewHTTPError(http.StatusUnauthorized, "evaluation session ended")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errTooManyRequests      = echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
)

// conflicts are business rule violations reported with 409.
var conflicts = []error{
	evaluator.ErrAlreadyFinalized,
	access.ErrInvalidTransition,
	school.ErrCategoryInUse,
}

func isConflict(err error) bool {
	for _, c := range conflicts {
		if err == c {
			return true
		}
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		origErr := errors.Cause(err)
		if ise, ok := origErr.(*evaluation.InvalidScoreError); ok {
			origErr = errors.Cause(ise.ValidationError())
		}

		switch cause := origErr.(type) {
		case *echo.HTTPError:
			if cause == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = cause.Message
				break
			}
			if cause.Internal != nil {
				if herr, ok := cause.Internal.(*echo.HTTPError); ok {
					cause = herr
				}
			}
			code = cause.Code
			message = cause.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(cause))
			for _, vErr := range cause {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if cause.Fields != nil {
				fldErrs := make(map[string]string, len(cause.Fields))
				for _, fErr := range cause.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = cause.Error()
			}
			code = http.StatusBadRequest
		case *core.NotFoundError:
			code = http.StatusNotFound
			message = cause.Error()
		case *evaluation.IncompleteProjectsError:
			code = http.StatusConflict
			message = echo.Map{"error": cause.Error(), "projects": cause.Titles}
		default:
			switch {
			case cause == evaluation.ErrNotAuthorized:
				code = http.StatusForbidden
				message = cause.Error()
			case cause == user.ErrAuthenticationFailed, cause == evaluator.ErrAuthenticationFailed:
				code = errAuthenticationFailed.Code
				message = errAuthenticationFailed.Message
			case cause == user.ErrAccountDeactivated, cause == evaluator.ErrAccountDeactivated:
				code = errAccountDeactivated.Code
				message = errAccountDeactivated.Message
			case isConflict(cause):
				code = http.StatusConflict
				message = cause.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var person logsvc.Person
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					person = logsvc.Person{ID: claims.Subject, Username: claims.Username, Email: claims.Email}
				}
				logger.Error(msg, errors.Wrap(err, msg), person)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
