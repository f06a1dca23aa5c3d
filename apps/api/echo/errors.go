package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
)

const codeValidationFailed = "VALIDATION_FAILED"

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errInvalidFormat  = echo.NewHTTPError(http.StatusBadRequest, "unsupported export format, use json or xlsx")
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Code   string                  `json:"code,omitempty"`
	Fields map[string]interface{}  `json:"fields,omitempty"`
	Report *group.AllocationReport `json:"report,omitempty"`
}

func kindStatus(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalid:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	case core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func appErrorResponse(appErr *core.AppError) (int, ErrorResponse) {
	return kindStatus(appErr.Kind), ErrorResponse{Error: appErr.Message, Code: appErr.Code, Fields: appErr.Fields}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var resp ErrorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				resp.Error = origErr.Message.(string)
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(code)
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]interface{}, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			resp = ErrorResponse{Error: "invalid request", Code: codeValidationFailed, Fields: fldErrs}
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp = ErrorResponse{Error: origErr.Error(), Code: codeValidationFailed}
			var appErr *core.AppError
			if errors.As(origErr.Err, &appErr) {
				code, resp = appErrorResponse(appErr)
			}
			if resp.Error == "" {
				resp.Error = "invalid request"
			}
			if len(origErr.Fields) > 0 {
				resp.Fields = make(map[string]interface{}, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Fields[fErr.Field] = fErr.Error
				}
			}
		case *core.AppError:
			code, resp = appErrorResponse(origErr)
		case *group.PartialFailureError:
			code = http.StatusConflict
			resp = ErrorResponse{Error: origErr.Error(), Code: group.ErrConcurrentAssignment.Code}
			var appErr *core.AppError
			if errors.As(origErr.Err, &appErr) {
				resp.Code = appErr.Code
			}
			report := origErr.Report
			resp.Report = &report
			logger.Warn("auto-assign partially failed", err, report)
		default:
			var appErr *core.AppError
			if errors.As(err, &appErr) {
				code, resp = appErrorResponse(appErr)
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			resp.Error = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.UserID
				usr.Name = claims.Name
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			if ctx.Echo().Debug {
				resp.Error = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
