package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/internal/apperr"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ErrorHandler renders every error as ErrorResponse. Internal details are
// logged, never sent.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Render(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error("failed to write error response", zap.Error(writeErr))
		}
	}
}

func Render(err error) (int, ErrorResponse) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Kind.Status(), ErrorResponse{
			Message: ae.PublicMessage(),
			Code:    ae.Kind.PublicCode(),
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if he.Code < http.StatusInternalServerError {
			if m, ok := he.Message.(string); ok && m != "" {
				message = m
			} else if he.Message != nil {
				message = fmt.Sprint(he.Message)
			}
		}
		return he.Code, ErrorResponse{Message: message, Code: codeForStatus(he.Code)}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
		Code:    apperr.Internal.PublicCode(),
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.Validation.PublicCode()
	case http.StatusUnauthorized:
		return apperr.Unauthenticated.PublicCode()
	case http.StatusForbidden:
		return apperr.Forbidden.PublicCode()
	case http.StatusNotFound:
		return apperr.NotFound.PublicCode()
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusConflict:
		return apperr.Conflict.PublicCode()
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return apperr.TooManyRequests.PublicCode()
	default:
		if status >= http.StatusInternalServerError {
			return apperr.Internal.PublicCode()
		}
		return "HTTP_ERROR"
	}
}
