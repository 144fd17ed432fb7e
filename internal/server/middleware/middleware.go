package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"poc-router/logging"
)

// LoggingMiddleware logs one line per request with method, path, status
// and latency.
func LoggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		logging.Info("Request handled", logging.Server,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}

// TransparentErrorHandler renders echo.HTTPError messages as-is so upstream
// backend errors pass through to the caller without being rewrapped.
func TransparentErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var message interface{} = "internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		message = he.Message
		if he.Internal != nil {
			message = he.Internal.Error()
		}
	}

	var writeErr error
	switch m := message.(type) {
	case string:
		writeErr = c.JSON(code, map[string]string{"error": m})
	default:
		writeErr = c.JSON(code, m)
	}
	if writeErr != nil {
		logging.Error("Failed to write error response", logging.Server, "error", writeErr.Error())
	}
}
