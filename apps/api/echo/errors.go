package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
)

var errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")

// engineErrStatus maps the form engine's sentinel errors to HTTP status codes.
var engineErrStatus = map[error]int{
	form.ErrFormNotFound:     http.StatusNotFound,
	form.ErrSessionNotFound:  http.StatusNotFound,
	form.ErrFieldNotFound:    http.StatusNotFound,
	form.ErrForbidden:        http.StatusForbidden,
	form.ErrNotSelect:        http.StatusBadRequest,
	form.ErrOptionsNotLoaded: http.StatusBadRequest,
	form.ErrLastStep:         http.StatusConflict,
	form.ErrStepsRemaining:   http.StatusConflict,
	form.ErrAlreadySubmitted: http.StatusConflict,
	form.ErrSubmitInFlight:   http.StatusConflict,
	form.ErrNotVerifiable:    http.StatusBadRequest,
	form.ErrNoChallenge:      http.StatusConflict,
	form.ErrTooManyAttempts:  http.StatusTooManyRequests,
	form.ErrCodeMismatch:     http.StatusBadRequest,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if status, ok := engineErrStatus[cause]; ok {
			code = status
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			case *form.CooldownError:
				code = http.StatusTooManyRequests
				message = origErr.Error()
			case *form.OptionsUnavailableError:
				// the upstream may come back any moment; clients retry
				code = http.StatusServiceUnavailable
				message = echo.Map{"error": origErr.Error(), "retryable": true}
			case *form.SubmissionError:
				code = http.StatusUnprocessableEntity
				message = origErr.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var person core.Person
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					person.ID = claims.Subject
					person.Username = claims.Username
					person.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), person)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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
