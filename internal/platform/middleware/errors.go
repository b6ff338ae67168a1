package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/resourceaccess/internal/platform/fhir"
)

// ErrorHandler renders every handler error as an OperationOutcome. Typed
// errors keep their status; echo errors (404 route, 405, bind) keep theirs;
// anything else is a 500 whose cause is logged but not returned.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status  int
			outcome *fhir.OperationOutcome
		)
		switch e := err.(type) {
		case *echo.HTTPError:
			status = e.Code
			outcome = fhir.FromStatus(status, httpErrorMessage(e), nil).Outcome()
		default:
			fe := fhir.AsError(err)
			status = fe.StatusCode
			if status >= http.StatusInternalServerError {
				rid, _ := c.Get("request_id").(string)
				logger.Error().Err(err).Str("request_id", rid).Msg("request failed")
				outcome = fhir.InternalErrorOutcome(fe.Message)
			} else {
				outcome = fe.Outcome()
			}
		}

		c.Response().Header().Set(echo.HeaderContentType, fhir.FHIRMediaType)
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, outcome)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func httpErrorMessage(e *echo.HTTPError) string {
	if msg, ok := e.Message.(string); ok {
		return msg
	}
	return http.StatusText(e.Code)
}
