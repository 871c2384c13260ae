package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PageRenderer writes an HTML error page for non-API routes.
type PageRenderer func(c echo.Context, status int, message string) error

// ErrorHandler replaces echo's default error handler. Paths under /api/ get
// {"error": "..."}; everything else is rendered by pages, which plays the
// role of the UI error boundary.
func ErrorHandler(logger zerolog.Logger, pages PageRenderer) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if he.Internal != nil {
				logger.Debug().Err(he.Internal).Int("status", status).Msg("internal error detail")
			}
			message = fmt.Sprintf("%v", he.Message)
		} else if err != nil {
			message = err.Error()
		}

		var writeErr error
		switch {
		case c.Request().Method == http.MethodHead:
			writeErr = c.NoContent(status)
		case strings.HasPrefix(c.Request().URL.Path, "/api/") || pages == nil:
			writeErr = c.JSON(status, map[string]string{"error": message})
		default:
			writeErr = pages(c, status, message)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}
