package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
)

const (
	// HeaderTenantID carries the tenant when authentication is disabled
	HeaderTenantID = "X-Tenant-ID"
	// HeaderUserID carries the user when authentication is disabled
	HeaderUserID = "X-User-ID"

	maxRequestIDLength = 128
)

// Context seeds the request context with its identity. Authentication, when enabled,
// replaces the tenant and user taken from headers here.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := requestID(req)
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			ctx := appctx.SetRequestID(req.Context(), id)
			ctx = appctx.SetMethod(ctx, req.Method)
			ctx = appctx.SetRoute(ctx, c.Path())
			ctx = appctx.SetRemoteIP(ctx, c.RealIP())
			ctx = appctx.SetTenantID(ctx, strings.TrimSpace(req.Header.Get(HeaderTenantID)))
			ctx = appctx.SetUserID(ctx, strings.TrimSpace(req.Header.Get(HeaderUserID)))
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// requestID keeps a caller's id unless it is blank or oversized
func requestID(req *http.Request) string {
	id := strings.TrimSpace(req.Header.Get(echo.HeaderXRequestID))
	if id == "" || len(id) > maxRequestIDLength {
		return uuid.NewString()
	}
	return id
}
