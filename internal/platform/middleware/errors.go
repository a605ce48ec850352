package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// detailer is implemented by errors that carry per-field messages, such as
// request validation failures.
type detailer interface {
	Details() map[string]string
}

// StatusOf maps an error returned by a handler to its HTTP status.
func StatusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders handler errors as ErrorResponse. Server errors are
// logged with their cause and reported to the client with a generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}
		status := http.StatusInternalServerError

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			resp.Error = messageOf(he)
			var d detailer
			if he.Internal != nil && errors.As(he.Internal, &d) {
				resp.Details = d.Details()
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", stringValue(c.Get("request_id"))).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
			if he == nil || he.Internal != nil {
				resp.Error = "internal server error"
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, resp)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func messageOf(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprintf("%v", m)
	}
}
