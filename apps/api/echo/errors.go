package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

var (
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound     = echo.NewHTTPError(http.StatusNotFound, "not found")
	errSessionNotFound  = echo.NewHTTPError(http.StatusNotFound, "editing session not found")
	errElementNotFound  = echo.NewHTTPError(http.StatusNotFound, certificate.ErrElementNotFound.Error())
	errExportFailed     = "could not export the certificate"
	errServerErrorTitle = http.StatusText(http.StatusInternalServerError)
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		logServerError := func(msg string) {
			var person core.Person
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				person = claims.Person()
			}
			logger.Error(msg, errors.Wrap(err, msg), person)
		}

		switch origErr := errors.Cause(err).(type) {
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
		case *certificate.SanitizationError:
			code = http.StatusBadRequest
			message = echo.Map{"template": origErr.Error()}
		case *certificate.PersistenceError:
			message = origErr.Message
			switch origErr.Kind {
			case certificate.KindConflict:
				code = http.StatusConflict
			case certificate.KindNotFound:
				code = http.StatusNotFound
			default:
				code = http.StatusInternalServerError
				logServerError(origErr.Message)
			}
		case *certificate.ExportError:
			code = http.StatusInternalServerError
			message = errExportFailed
			logServerError(errExportFailed)
		default:
			switch origErr {
			case certificate.ErrBusy:
				code = http.StatusTooManyRequests
				message = origErr.Error()
			case certificate.ErrNoSelection, certificate.ErrNoGesture, certificate.ErrGestureInProgress:
				code = http.StatusConflict
				message = origErr.Error()
			case certificate.ErrElementNotFound, certificate.ErrNotFound:
				code = http.StatusNotFound
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				message = errServerErrorTitle
				logServerError(errServerErrorTitle)

				// shutting down...
				if core.IsShutdown(err) && signalShutdown != nil {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
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
