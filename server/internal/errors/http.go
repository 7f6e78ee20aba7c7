// Package errors maps engine error codes onto HTTP responses.
package errors

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	ierrors "github.com/hrygo/strawbean/internal/errors"
)

// Response is the JSON body of an error response.
type Response struct {
	Code    ierrors.ErrorCode `json:"code"`
	Message string            `json:"message"`
}

// HTTPStatus returns the status code for an error code.
func HTTPStatus(code ierrors.ErrorCode) int {
	switch code {
	case ierrors.ErrCodeParse, ierrors.ErrCodeInvalidArgument, ierrors.ErrCodePastInstantUnresolvable:
		return http.StatusBadRequest
	case ierrors.ErrCodeNotFound:
		return http.StatusNotFound
	case ierrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ierrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ierrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// codeForStatus is used for errors raised by echo itself, such as unknown routes.
func codeForStatus(status int) ierrors.ErrorCode {
	switch status {
	case http.StatusBadRequest, http.StatusMethodNotAllowed, http.StatusUnsupportedMediaType:
		return ierrors.ErrCodeInvalidArgument
	case http.StatusNotFound:
		return ierrors.ErrCodeNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ierrors.ErrCodeUnauthorized
	case http.StatusTooManyRequests:
		return ierrors.ErrCodeRateLimitExceeded
	default:
		return ierrors.ErrCodeInternal
	}
}

// ToResponse converts err to a status and body. Internal failures are not
// described to the client.
func ToResponse(err error) (int, Response) {
	var e *ierrors.Error
	if stderrors.As(err, &e) {
		status := HTTPStatus(e.Code)
		if status == http.StatusInternalServerError {
			return status, Response{Code: ierrors.ErrCodeInternal, Message: http.StatusText(status)}
		}
		return status, Response{Code: e.Code, Message: e.Message}
	}

	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		}
		return he.Code, Response{Code: codeForStatus(he.Code), Message: message}
	}

	return http.StatusInternalServerError, Response{Code: ierrors.ErrCodeInternal, Message: http.StatusText(http.StatusInternalServerError)}
}

// HTTPErrorHandler renders handler errors as JSON Responses.
func HTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := ToResponse(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"error", err,
			)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}
