package apperror

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/logger"
)

// HTTPErrorHandler returns the canonical echo error handler. Production mode
// serializes only error_code and message (plus validation details); debug mode
// additionally exposes the internal error string.
func HTTPErrorHandler(log *slog.Logger, debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := translate(err)

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		attrs := []any{
			slog.Int("status", appErr.HTTPStatus),
			slog.String("error_code", appErr.Code),
			slog.String("request_id", requestID),
			slog.String("uri", c.Request().RequestURI),
		}
		if appErr.Internal != nil {
			attrs = append(attrs, logger.Error(appErr.Internal))
		}

		switch {
		case appErr.HTTPStatus >= 500:
			log.Error("request error", attrs...)
		case appErr.Category == CategoryValidation:
			log.Info("request rejected", attrs...)
		default:
			log.Warn("request rejected", attrs...)
		}

		if appErr.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
		}

		body := map[string]any{
			"error_code": appErr.Code,
			"message":    appErr.Message,
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		if debug && appErr.Internal != nil {
			body["debug"] = appErr.Internal.Error()
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(appErr.HTTPStatus)
			return
		}
		_ = c.JSON(appErr.HTTPStatus, body)
	}
}

// translate maps any error to a taxonomy entry.
func translate(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return New(he.Code, codeForStatus(he.Code), categoryForStatus(he.Code), SeverityWarning, msg).WithInternal(he.Internal)
	}

	// Context deadline on a DB call surfaces as transient backpressure.
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrServiceUnavailable.WithInternal(err)
	}

	return ErrInternal.WithInternal(err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "AUTH_001"
	case http.StatusForbidden:
		return "PERM_001"
	case http.StatusNotFound:
		return "NF_001"
	case http.StatusBadRequest:
		return "VAL_002"
	case http.StatusConflict:
		return "CONF_001"
	case http.StatusTooManyRequests:
		return "RATE_001"
	case http.StatusNotImplemented:
		return "NI_001"
	case http.StatusServiceUnavailable:
		return "SVC_001"
	default:
		return "SRV_001"
	}
}

func categoryForStatus(status int) Category {
	switch status {
	case http.StatusUnauthorized:
		return CategoryAuthentication
	case http.StatusForbidden:
		return CategoryAuthorization
	case http.StatusNotFound:
		return CategoryNotFound
	case http.StatusBadRequest:
		return CategoryValidation
	case http.StatusConflict:
		return CategoryConflict
	case http.StatusTooManyRequests:
		return CategoryRateLimit
	case http.StatusNotImplemented:
		return CategoryNotImplemented
	case http.StatusServiceUnavailable:
		return CategoryServiceUnavailable
	default:
		return CategoryServer
	}
}
