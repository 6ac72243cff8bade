package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Error renders handler errors. Errors that escape the repositories unwrapped are mapped
// from their Postgres code or merge kind, so a caller mistake never surfaces as a 500.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		code, message, meta := classify(err)

		log := logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"status": code,
			"route":  c.Path(),
		})
		if code >= http.StatusInternalServerError {
			log.Error("Request failed")
		} else {
			log.Warn("Request rejected")
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: appctx.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

func classify(err error) (int, string, map[string]any) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
		return he.Code, message, nil
	}

	if httperror.IsHTTPError(err) {
		httperr := httperror.ToHTTPError(err)
		return httperror.GetStatusCode(err), httperr.Error(), httperr.Meta
	}

	switch database.ErrorCode(err) {
	case database.CodeInvalidText:
		return http.StatusBadRequest, "malformed identifier", nil
	case database.CodeForeignKeyViolation:
		return http.StatusConflict, "record is still referenced", nil
	case database.CodeUniqueViolation:
		return http.StatusConflict, "record already exists", nil
	}

	switch {
	case errors.Is(err, merging.ErrInvalidMerge):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, merging.ErrMergeInProgress):
		return http.StatusConflict, err.Error(), nil
	case errors.Is(err, merging.ErrLockUnavailable):
		return http.StatusServiceUnavailable, err.Error(), nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out", nil
	}

	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), nil
}
